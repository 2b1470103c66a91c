// Package directory loads the customer directory from a YAML file and serves
// it as an immutable, read-optimized snapshot.
package directory

import (
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/korubo/kybdash/model"
)

// directoryFile mirrors the on-disk YAML layout.
type directoryFile struct {
	Customers []model.Customer `yaml:"customers"`
}

// snapshot is an immutable view of the directory indexed by customer ID.
type snapshot struct {
	byID    map[string]model.Customer
	ordered []model.Customer
}

// Directory is a thread-safe customer directory. Reads are lock-free via
// atomic pointer swap; Reload replaces the whole snapshot at once.
type Directory struct {
	path string
	snap atomic.Pointer[snapshot]
}

// Load reads the directory file at path. A missing file yields an empty
// directory rather than an error, so a fresh deployment starts clean.
func Load(path string) (*Directory, error) {
	d := &Directory{path: path}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads the directory file and atomically swaps the snapshot.
func (d *Directory) Reload() error {
	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		d.snap.Store(buildSnapshot(nil))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", d.path, err)
	}

	var file directoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing directory %s: %w", d.path, err)
	}

	d.snap.Store(buildSnapshot(file.Customers))
	return nil
}

func buildSnapshot(customers []model.Customer) *snapshot {
	s := &snapshot{byID: make(map[string]model.Customer, len(customers))}
	for _, c := range customers {
		if c.ID == "" {
			continue
		}
		if _, dup := s.byID[c.ID]; dup {
			continue
		}
		s.byID[c.ID] = c
		s.ordered = append(s.ordered, c)
	}
	sort.Slice(s.ordered, func(i, j int) bool {
		return s.ordered[i].Name < s.ordered[j].Name
	})
	return s
}

// Customers returns all customers, sorted by name.
func (d *Directory) Customers() []model.Customer {
	snap := d.snap.Load()
	out := make([]model.Customer, len(snap.ordered))
	copy(out, snap.ordered)
	return out
}

// Get returns the customer with the given ID.
func (d *Directory) Get(id string) (model.Customer, bool) {
	c, ok := d.snap.Load().byID[id]
	return c, ok
}

// Contains reports whether the directory holds the given customer ID.
func (d *Directory) Contains(id string) bool {
	_, ok := d.snap.Load().byID[id]
	return ok
}

// Len returns the number of customers in the directory.
func (d *Directory) Len() int {
	return len(d.snap.Load().byID)
}
