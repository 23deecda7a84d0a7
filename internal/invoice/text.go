// ABOUTME: Plain-text invoice renderer used when no PDF backend is wired
// ABOUTME: Output is stable line-oriented text suitable for piping or email

package invoice

import (
	"bytes"
	"fmt"

	"github.com/partforge/partforge/internal/store"
)

// TextRenderer renders invoices as plain text.
type TextRenderer struct{}

// ContentType implements Renderer.
func (TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }

// Render implements Renderer.
func (TextRenderer) Render(snapshot Snapshot, customer *store.Customer, project *store.Project) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "INVOICE\n")
	fmt.Fprintf(&buf, "Customer: %s\n", customer.Name)
	fmt.Fprintf(&buf, "Project:  %s\n", project.Name)
	fmt.Fprintf(&buf, "BOM:      %s\n", snapshot.BOMID)
	fmt.Fprintf(&buf, "Lines:    %d\n", snapshot.LineCount)
	fmt.Fprintf(&buf, "Total cost: %.2f\n", snapshot.TotalCost)
	fmt.Fprintf(&buf, "Total time: %.2f\n", snapshot.TotalTime)
	return buf.Bytes(), nil
}
