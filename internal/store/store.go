// Package store persists dashboard session data: the durably-saved customer
// selection, the bounded recent-check history, the most recent successful
// check result, and manual risk-band overrides.
package store

import (
	"context"

	"github.com/korubo/kybdash/model"
)

// Store persists dashboard data per dashboard user (subject). All writes
// flow through the run controller or the override handler; readers may be
// concurrent with a run in flight and must always observe a fully-written
// previous value, never a partial one.
type Store interface {
	// SaveSelectedCustomer durably records the customer the subject last
	// ran a check for.
	SaveSelectedCustomer(ctx context.Context, subjectID, customerID string) error

	// LastSelectedCustomer returns the durably-saved customer id, or ""
	// if none has been saved.
	LastSelectedCustomer(ctx context.Context, subjectID string) (string, error)

	// SaveRecentCheck prepends a record to the subject's recent-check
	// history, discarding entries beyond the history cap.
	SaveRecentCheck(ctx context.Context, subjectID string, rec model.RecentCheckRecord) error

	// RecentChecks returns the subject's history, most-recent-first,
	// length bounded by the cap.
	RecentChecks(ctx context.Context, subjectID string) ([]model.RecentCheckRecord, error)

	// SaveResult atomically replaces the subject's cached check result.
	SaveResult(ctx context.Context, subjectID string, res model.CheckResult) error

	// LatestResult returns the cached result and true, or false if no
	// successful check has completed yet.
	LatestResult(ctx context.Context, subjectID string) (model.CheckResult, bool, error)

	// SaveOverride upserts a manual risk-band override for a customer.
	SaveOverride(ctx context.Context, subjectID string, o model.RiskBandOverride) error

	// OverrideFor returns the override for a customer and true, or false
	// if none exists.
	OverrideFor(ctx context.Context, subjectID, customerID string) (model.RiskBandOverride, bool, error)
}
