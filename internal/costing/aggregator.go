// ABOUTME: Cost aggregator keeping derived BOM totals consistent with leaf values
// ABOUTME: Recomputes synchronously after every mutation and propagates upward

package costing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/partforge/partforge/internal/store"
)

// ErrResourceNotFound is returned when a line item references a resource
// that no longer exists. Totals are never silently zeroed in that case.
var ErrResourceNotFound = errors.New("referenced resource not found")

// AggregatorStore is the slice of the entity store the aggregator reads
// and writes.
type AggregatorStore interface {
	GetResource(ctx context.Context, id string) (*store.Resource, error)
	GetBOM(ctx context.Context, id string) (*store.BOM, error)
	SetBOMTotals(ctx context.Context, id string, totalCost, totalTime float64) error
	GetBOMResource(ctx context.Context, id string) (*store.BOMResource, error)
	SetBOMResource(ctx context.Context, id string, quantity, totalCost, totalTime float64) error
	GetManufacturingProcess(ctx context.Context, id string) (*store.ManufacturingProcess, error)
	SetManufacturingProcess(ctx context.Context, id string, quantity, totalCost, totalTime float64) error
	GetProcessResource(ctx context.Context, id string) (*store.ProcessResource, error)
	SetProcessResource(ctx context.Context, id string, quantity, totalCost, totalTime float64) error
	ListBOMResources(ctx context.Context, bomID string) ([]*store.BOMResource, error)
	ListManufacturingProcesses(ctx context.Context, bomID string) ([]*store.ManufacturingProcess, error)
	ListProcessResources(ctx context.Context, processID string) ([]*store.ProcessResource, error)
	ListBOMResourcesByResource(ctx context.Context, resourceID string) ([]*store.BOMResource, error)
	ListProcessResourcesByResource(ctx context.Context, resourceID string) ([]*store.ProcessResource, error)
	ListManufacturingProcessesByResource(ctx context.Context, resourceID string) ([]*store.ManufacturingProcess, error)
}

// Aggregator recomputes derived cost/time totals eagerly after mutations.
// Recompute-and-save sequences for a BOM are serialized per BOM ID so
// concurrent edits to sibling line items cannot interleave a stale sum.
type Aggregator struct {
	store  AggregatorStore
	logger *slog.Logger

	mu       sync.Mutex
	bomLocks map[string]*sync.Mutex
}

// NewAggregator creates an aggregator over the given store.
func NewAggregator(s AggregatorStore) *Aggregator {
	return &Aggregator{
		store:    s,
		logger:   slog.Default().With("component", "costing"),
		bomLocks: make(map[string]*sync.Mutex),
	}
}

// lockBOM returns the mutex serializing recomputation of one BOM.
func (a *Aggregator) lockBOM(bomID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.bomLocks[bomID]
	if !ok {
		l = &sync.Mutex{}
		a.bomLocks[bomID] = l
	}
	return l
}

// lineTotals derives a line item's totals from its quantity and resource.
func (a *Aggregator) lineTotals(ctx context.Context, resourceID string, quantity float64) (cost, time float64, err error) {
	res, err := a.store.GetResource(ctx, resourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, 0, fmt.Errorf("resource %s: %w", resourceID, ErrResourceNotFound)
		}
		return 0, 0, fmt.Errorf("loading resource: %w", err)
	}
	return quantity * res.UnitCost, quantity * res.UnitTime, nil
}

// RecomputeBOMResource re-derives one BOM resource line item's totals.
func (a *Aggregator) RecomputeBOMResource(ctx context.Context, id string) error {
	br, err := a.store.GetBOMResource(ctx, id)
	if err != nil {
		return fmt.Errorf("loading BOM resource: %w", err)
	}
	cost, time, err := a.lineTotals(ctx, br.ResourceID, br.Quantity)
	if err != nil {
		return err
	}
	if err := a.store.SetBOMResource(ctx, id, br.Quantity, cost, time); err != nil {
		return fmt.Errorf("saving BOM resource totals: %w", err)
	}
	return nil
}

// RecomputeProcess re-derives a manufacturing process's own totals from its
// direct resource line. The process's nested process resources are a
// separate contribution and do not affect these fields.
func (a *Aggregator) RecomputeProcess(ctx context.Context, id string) error {
	mp, err := a.store.GetManufacturingProcess(ctx, id)
	if err != nil {
		return fmt.Errorf("loading manufacturing process: %w", err)
	}
	cost, time, err := a.lineTotals(ctx, mp.ResourceID, mp.Quantity)
	if err != nil {
		return err
	}
	if err := a.store.SetManufacturingProcess(ctx, id, mp.Quantity, cost, time); err != nil {
		return fmt.Errorf("saving process totals: %w", err)
	}
	return nil
}

// RecomputeProcessResource re-derives one process resource line item's
// totals.
func (a *Aggregator) RecomputeProcessResource(ctx context.Context, id string) error {
	pr, err := a.store.GetProcessResource(ctx, id)
	if err != nil {
		return fmt.Errorf("loading process resource: %w", err)
	}
	cost, time, err := a.lineTotals(ctx, pr.ResourceID, pr.Quantity)
	if err != nil {
		return err
	}
	if err := a.store.SetProcessResource(ctx, id, pr.Quantity, cost, time); err != nil {
		return fmt.Errorf("saving process resource totals: %w", err)
	}
	return nil
}

// RecomputeBOM re-sums a BOM's totals from the current child totals. The
// children are re-fetched rather than trusted from memory since they may
// have just been recomputed. A manufacturing process contributes its own
// direct line plus all of its process resources.
func (a *Aggregator) RecomputeBOM(ctx context.Context, bomID string) error {
	l := a.lockBOM(bomID)
	l.Lock()
	defer l.Unlock()

	if _, err := a.store.GetBOM(ctx, bomID); err != nil {
		return fmt.Errorf("loading BOM: %w", err)
	}

	var totalCost, totalTime float64

	bomResources, err := a.store.ListBOMResources(ctx, bomID)
	if err != nil {
		return fmt.Errorf("listing BOM resources: %w", err)
	}
	for _, br := range bomResources {
		totalCost += br.TotalCost
		totalTime += br.TotalTime
	}

	processes, err := a.store.ListManufacturingProcesses(ctx, bomID)
	if err != nil {
		return fmt.Errorf("listing manufacturing processes: %w", err)
	}
	for _, mp := range processes {
		totalCost += mp.TotalCost
		totalTime += mp.TotalTime

		prs, err := a.store.ListProcessResources(ctx, mp.ID)
		if err != nil {
			return fmt.Errorf("listing process resources: %w", err)
		}
		for _, pr := range prs {
			totalCost += pr.TotalCost
			totalTime += pr.TotalTime
		}
	}

	if err := a.store.SetBOMTotals(ctx, bomID, totalCost, totalTime); err != nil {
		return fmt.Errorf("saving BOM totals: %w", err)
	}

	a.logger.Debug("recomputed BOM", "bom_id", bomID, "total_cost", totalCost, "total_time", totalTime)
	return nil
}

// BOMResourceChanged recomputes a BOM resource line item and propagates to
// its owning BOM. Called after the item is added or its quantity changes.
func (a *Aggregator) BOMResourceChanged(ctx context.Context, id string) error {
	if err := a.RecomputeBOMResource(ctx, id); err != nil {
		return err
	}
	br, err := a.store.GetBOMResource(ctx, id)
	if err != nil {
		return fmt.Errorf("loading BOM resource: %w", err)
	}
	return a.RecomputeBOM(ctx, br.BOMID)
}

// ProcessChanged recomputes a manufacturing process and propagates to its
// owning BOM.
func (a *Aggregator) ProcessChanged(ctx context.Context, id string) error {
	if err := a.RecomputeProcess(ctx, id); err != nil {
		return err
	}
	mp, err := a.store.GetManufacturingProcess(ctx, id)
	if err != nil {
		return fmt.Errorf("loading manufacturing process: %w", err)
	}
	return a.RecomputeBOM(ctx, mp.BOMID)
}

// ProcessResourceChanged recomputes a process resource line item, the
// owning process and then the owning BOM.
func (a *Aggregator) ProcessResourceChanged(ctx context.Context, id string) error {
	if err := a.RecomputeProcessResource(ctx, id); err != nil {
		return err
	}
	pr, err := a.store.GetProcessResource(ctx, id)
	if err != nil {
		return fmt.Errorf("loading process resource: %w", err)
	}
	if err := a.RecomputeProcess(ctx, pr.ProcessID); err != nil {
		return err
	}
	mp, err := a.store.GetManufacturingProcess(ctx, pr.ProcessID)
	if err != nil {
		return fmt.Errorf("loading owning process: %w", err)
	}
	return a.RecomputeBOM(ctx, mp.BOMID)
}

// ResourceChanged recomputes every line item depending on a resource and
// then every BOM containing one of them. Called after the resource's unit
// cost or unit time is edited.
func (a *Aggregator) ResourceChanged(ctx context.Context, resourceID string) error {
	affectedBOMs := make(map[string]struct{})

	bomItems, err := a.store.ListBOMResourcesByResource(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("listing dependent BOM resources: %w", err)
	}
	for _, br := range bomItems {
		if err := a.RecomputeBOMResource(ctx, br.ID); err != nil {
			return err
		}
		affectedBOMs[br.BOMID] = struct{}{}
	}

	processes, err := a.store.ListManufacturingProcessesByResource(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("listing dependent processes: %w", err)
	}
	for _, mp := range processes {
		if err := a.RecomputeProcess(ctx, mp.ID); err != nil {
			return err
		}
		affectedBOMs[mp.BOMID] = struct{}{}
	}

	procItems, err := a.store.ListProcessResourcesByResource(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("listing dependent process resources: %w", err)
	}
	for _, pr := range procItems {
		if err := a.RecomputeProcessResource(ctx, pr.ID); err != nil {
			return err
		}
		mp, err := a.store.GetManufacturingProcess(ctx, pr.ProcessID)
		if err != nil {
			return fmt.Errorf("loading owning process: %w", err)
		}
		affectedBOMs[mp.BOMID] = struct{}{}
	}

	for bomID := range affectedBOMs {
		if err := a.RecomputeBOM(ctx, bomID); err != nil {
			return err
		}
	}

	a.logger.Debug("propagated resource change", "resource_id", resourceID, "boms", len(affectedBOMs))
	return nil
}
