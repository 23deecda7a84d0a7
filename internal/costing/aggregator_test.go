// ABOUTME: Tests for cost/time rollup and change propagation
// ABOUTME: Walks the worked scenarios: line items, processes, unit edits

package costing

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partforge/partforge/internal/store"
)

type env struct {
	store *store.SQLiteStore
	agg   *Aggregator
	bom   *store.BOM
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	product := &store.Product{ID: uuid.NewString(), Name: "Gearbox", CreatedAt: time.Now()}
	require.NoError(t, s.CreateProduct(ctx, product))

	now := time.Now()
	ref := &store.Reference{
		ID: uuid.NewString(), Code: "REF-1", ProductID: product.ID,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateReference(ctx, ref))

	bom := &store.BOM{ID: uuid.NewString(), ReferenceID: ref.ID, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateBOM(ctx, bom))

	return &env{store: s, agg: NewAggregator(s), bom: bom}
}

func (e *env) createResource(t *testing.T, unitCost, unitTime float64) *store.Resource {
	t.Helper()

	now := time.Now()
	res := &store.Resource{
		ID: uuid.NewString(), Name: "Steel", UnitCost: unitCost, UnitTime: unitTime,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, e.store.CreateResource(context.Background(), res))
	return res
}

func (e *env) addLine(t *testing.T, resourceID string, quantity float64) *store.BOMResource {
	t.Helper()
	ctx := context.Background()

	now := time.Now()
	br := &store.BOMResource{
		ID: uuid.NewString(), BOMID: e.bom.ID, ResourceID: resourceID,
		Quantity: quantity, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, e.store.CreateBOMResource(ctx, br))
	require.NoError(t, e.agg.BOMResourceChanged(ctx, br.ID))
	return br
}

func (e *env) addProcess(t *testing.T, resourceID string, quantity float64) *store.ManufacturingProcess {
	t.Helper()
	ctx := context.Background()

	now := time.Now()
	mp := &store.ManufacturingProcess{
		ID: uuid.NewString(), BOMID: e.bom.ID, ResourceID: resourceID,
		Quantity: quantity, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, e.store.CreateManufacturingProcess(ctx, mp))
	require.NoError(t, e.agg.ProcessChanged(ctx, mp.ID))
	return mp
}

func (e *env) bomTotals(t *testing.T) (float64, float64) {
	t.Helper()

	bom, err := e.store.GetBOM(context.Background(), e.bom.ID)
	require.NoError(t, err)
	return bom.TotalCost, bom.TotalTime
}

func TestRollup_LineItem(t *testing.T) {
	e := setupEnv(t)

	res := e.createResource(t, 10, 2)
	br := e.addLine(t, res.ID, 3)

	got, err := e.store.GetBOMResource(context.Background(), br.ID)
	require.NoError(t, err)
	assert.InDelta(t, 30, got.TotalCost, 1e-9)
	assert.InDelta(t, 6, got.TotalTime, 1e-9)

	cost, tm := e.bomTotals(t)
	assert.InDelta(t, 30, cost, 1e-9)
	assert.InDelta(t, 6, tm, 1e-9)
}

func TestRollup_ProcessAddsToBOM(t *testing.T) {
	e := setupEnv(t)

	material := e.createResource(t, 10, 2)
	machine := e.createResource(t, 50, 1)

	e.addLine(t, material.ID, 3)
	e.addProcess(t, machine.ID, 1)

	cost, tm := e.bomTotals(t)
	assert.InDelta(t, 80, cost, 1e-9)
	assert.InDelta(t, 7, tm, 1e-9)
}

func TestRollup_ResourceEditPropagates(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	material := e.createResource(t, 10, 2)
	machine := e.createResource(t, 50, 1)
	e.addLine(t, material.ID, 3)
	e.addProcess(t, machine.ID, 1)

	material.UnitCost = 20
	material.UpdatedAt = time.Now()
	require.NoError(t, e.store.UpdateResource(ctx, material))
	require.NoError(t, e.agg.ResourceChanged(ctx, material.ID))

	cost, tm := e.bomTotals(t)
	assert.InDelta(t, 110, cost, 1e-9)
	assert.InDelta(t, 7, tm, 1e-9)
}

func TestRollup_ProcessResources(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	machine := e.createResource(t, 50, 1)
	coolant := e.createResource(t, 5, 0)

	mp := e.addProcess(t, machine.ID, 1)

	now := time.Now()
	pr := &store.ProcessResource{
		ID: uuid.NewString(), ProcessID: mp.ID, ResourceID: coolant.ID,
		Quantity: 4, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, e.store.CreateProcessResource(ctx, pr))
	require.NoError(t, e.agg.ProcessResourceChanged(ctx, pr.ID))

	// The process's own totals stay its direct line.
	got, err := e.store.GetManufacturingProcess(ctx, mp.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50, got.TotalCost, 1e-9)
	assert.InDelta(t, 1, got.TotalTime, 1e-9)

	// The BOM includes the nested contribution.
	cost, tm := e.bomTotals(t)
	assert.InDelta(t, 70, cost, 1e-9)
	assert.InDelta(t, 1, tm, 1e-9)
}

func TestRollup_RecomputeIdempotent(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	res := e.createResource(t, 10, 2)
	e.addLine(t, res.ID, 3)

	before, beforeTime := e.bomTotals(t)
	require.NoError(t, e.agg.RecomputeBOM(ctx, e.bom.ID))
	after, afterTime := e.bomTotals(t)

	assert.Equal(t, before, after)
	assert.Equal(t, beforeTime, afterTime)
}

func TestRollup_QuantityChange(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	res := e.createResource(t, 10, 2)
	br := e.addLine(t, res.ID, 3)

	require.NoError(t, e.store.SetBOMResource(ctx, br.ID, 5, br.TotalCost, br.TotalTime))
	require.NoError(t, e.agg.BOMResourceChanged(ctx, br.ID))

	cost, tm := e.bomTotals(t)
	assert.InDelta(t, 50, cost, 1e-9)
	assert.InDelta(t, 10, tm, 1e-9)
}

func TestRollup_ProcessQuantityChange(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	material := e.createResource(t, 10, 2)
	machine := e.createResource(t, 50, 1)
	e.addLine(t, material.ID, 3)
	mp := e.addProcess(t, machine.ID, 1)

	require.NoError(t, e.store.SetManufacturingProcess(ctx, mp.ID, 2, mp.TotalCost, mp.TotalTime))
	require.NoError(t, e.agg.ProcessChanged(ctx, mp.ID))

	got, err := e.store.GetManufacturingProcess(ctx, mp.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100, got.TotalCost, 1e-9)
	assert.InDelta(t, 2, got.TotalTime, 1e-9)

	cost, tm := e.bomTotals(t)
	assert.InDelta(t, 130, cost, 1e-9)
	assert.InDelta(t, 8, tm, 1e-9)
}

func TestRollup_MissingResource(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	now := time.Now()
	br := &store.BOMResource{
		ID: uuid.NewString(), BOMID: e.bom.ID, ResourceID: uuid.NewString(),
		Quantity: 1, CreatedAt: now, UpdatedAt: now,
	}
	// FK enforcement rejects the orphan at insert time already.
	err := e.store.CreateBOMResource(ctx, br)
	if err == nil {
		err = e.agg.BOMResourceChanged(ctx, br.ID)
		assert.ErrorIs(t, err, ErrResourceNotFound)
	} else {
		assert.ErrorIs(t, err, store.ErrConflict)
	}
}

func TestRollup_ResourceEditTouchesOnlyDependentBOMs(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	// Second, independent BOM.
	product := &store.Product{ID: uuid.NewString(), Name: "Other", CreatedAt: time.Now()}
	require.NoError(t, e.store.CreateProduct(ctx, product))
	now := time.Now()
	ref := &store.Reference{
		ID: uuid.NewString(), Code: "REF-2", ProductID: product.ID,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, e.store.CreateReference(ctx, ref))
	otherBOM := &store.BOM{ID: uuid.NewString(), ReferenceID: ref.ID, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, e.store.CreateBOM(ctx, otherBOM))

	shared := e.createResource(t, 10, 1)
	solo := e.createResource(t, 100, 1)

	e.addLine(t, shared.ID, 2)

	otherLine := &store.BOMResource{
		ID: uuid.NewString(), BOMID: otherBOM.ID, ResourceID: solo.ID,
		Quantity: 1, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, e.store.CreateBOMResource(ctx, otherLine))
	require.NoError(t, e.agg.BOMResourceChanged(ctx, otherLine.ID))

	shared.UnitCost = 20
	require.NoError(t, e.store.UpdateResource(ctx, shared))
	require.NoError(t, e.agg.ResourceChanged(ctx, shared.ID))

	cost, _ := e.bomTotals(t)
	assert.InDelta(t, 40, cost, 1e-9)

	other, err := e.store.GetBOM(ctx, otherBOM.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100, other.TotalCost, 1e-9)
}
