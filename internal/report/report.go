// Package report renders a completed check result as a single-page PDF for
// the dashboard's export action. The document is assembled directly: a fixed
// header, one text line per field, standard Helvetica, no images.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/korubo/kybdash/model"
)

// Generate renders the result as a PDF document. effectiveBand is the band
// after any manual override; pass the computed band when no override exists.
func Generate(res model.CheckResult, effectiveBand model.RiskBand) []byte {
	lines := []string{
		"KYB Risk Check Report",
		"",
		fmt.Sprintf("Entity: %s", res.Entity.LegalName),
	}
	if res.Entity.RegistrationNumber != "" {
		lines = append(lines, fmt.Sprintf("Registration: %s", res.Entity.RegistrationNumber))
	}
	if res.Entity.Jurisdiction != "" {
		lines = append(lines, fmt.Sprintf("Jurisdiction: %s", res.Entity.Jurisdiction))
	}
	lines = append(lines,
		fmt.Sprintf("Risk score: %d", res.Risk.Score),
		fmt.Sprintf("Risk band: %s", effectiveBand),
	)
	if effectiveBand != res.Risk.Band {
		lines = append(lines, fmt.Sprintf("Computed band before override: %s", res.Risk.Band))
	}
	for _, trig := range res.Risk.Triggers {
		lines = append(lines, fmt.Sprintf("Trigger [%s] %s: %s", trig.Severity, trig.Code, trig.Description))
	}
	for _, action := range res.RecommendedActions {
		lines = append(lines, fmt.Sprintf("Action: %s", action))
	}
	if res.Notes != "" {
		lines = append(lines, fmt.Sprintf("Notes: %s", res.Notes))
	}
	generated := res.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	lines = append(lines, "",
		fmt.Sprintf("Trace: %s", res.TraceID),
		fmt.Sprintf("Generated: %s", generated.Format(time.RFC3339)),
	)

	return assemblePDF(lines)
}

// assemblePDF builds a minimal one-page PDF: catalog, page tree, one page,
// a content stream of text lines, and the Helvetica font object.
func assemblePDF(lines []string) []byte {
	var content bytes.Buffer
	content.WriteString("BT\n/F1 11 Tf\n50 790 Td\n14 TL\n")
	for i, line := range lines {
		if i > 0 {
			content.WriteString("T*\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", escapeText(line))
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] " +
			"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefStart)

	return buf.Bytes()
}

// escapeText escapes PDF string delimiters and drops characters outside the
// printable Latin-1 range the base font can show.
func escapeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			if r >= 32 && r < 127 {
				b.WriteRune(r)
			} else {
				b.WriteByte('?')
			}
		}
	}
	return b.String()
}
