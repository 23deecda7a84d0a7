// ABOUTME: Invoice snapshotting and the black-box PDF renderer interface
// ABOUTME: Snapshots copy BOM totals at issue time; rendering is pluggable

package invoice

import (
	"context"
	"fmt"

	"github.com/partforge/partforge/internal/store"
)

// Snapshot is the frozen BOM state an invoice is rendered from.
type Snapshot struct {
	BOMID     string
	TotalCost float64
	TotalTime float64
	LineCount int
}

// Renderer turns an invoice snapshot into a document. Implementations are
// treated as black boxes; TextRenderer ships as the plain-text default, and
// a PDF renderer slots in behind the same interface.
type Renderer interface {
	Render(snapshot Snapshot, customer *store.Customer, project *store.Project) ([]byte, error)
	ContentType() string
}

// SnapshotStore is the slice of the entity store snapshotting reads.
type SnapshotStore interface {
	GetBOM(ctx context.Context, id string) (*store.BOM, error)
	ListBOMResources(ctx context.Context, bomID string) ([]*store.BOMResource, error)
	ListManufacturingProcesses(ctx context.Context, bomID string) ([]*store.ManufacturingProcess, error)
}

// TakeSnapshot copies a BOM's current totals and line count. Later BOM
// edits do not affect issued invoices.
func TakeSnapshot(ctx context.Context, s SnapshotStore, bomID string) (Snapshot, error) {
	bom, err := s.GetBOM(ctx, bomID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading BOM: %w", err)
	}

	bomResources, err := s.ListBOMResources(ctx, bomID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("listing BOM resources: %w", err)
	}
	processes, err := s.ListManufacturingProcesses(ctx, bomID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("listing manufacturing processes: %w", err)
	}

	return Snapshot{
		BOMID:     bom.ID,
		TotalCost: bom.TotalCost,
		TotalTime: bom.TotalTime,
		LineCount: len(bomResources) + len(processes),
	}, nil
}
