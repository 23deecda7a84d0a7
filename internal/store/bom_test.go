// ABOUTME: Tests for BOM, line-item and process store operations
// ABOUTME: Covers the one-BOM-per-reference rule and cascade deletion

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestReference(t *testing.T, s *SQLiteStore, projectID *string) *Reference {
	t.Helper()
	ctx := context.Background()

	product := &Product{ID: uuid.NewString(), Name: "Gearbox", CreatedAt: time.Now()}
	require.NoError(t, s.CreateProduct(ctx, product))

	now := time.Now()
	ref := &Reference{
		ID:        uuid.NewString(),
		Code:      "REF-" + uuid.NewString()[:8],
		ProductID: product.ID,
		ProjectID: projectID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateReference(ctx, ref))
	return ref
}

func createTestResource(t *testing.T, s *SQLiteStore, unitCost, unitTime float64) *Resource {
	t.Helper()

	now := time.Now()
	res := &Resource{
		ID:        uuid.NewString(),
		Name:      "Steel",
		UnitCost:  unitCost,
		UnitTime:  unitTime,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateResource(context.Background(), res))
	return res
}

func createTestBOM(t *testing.T, s *SQLiteStore, referenceID string) *BOM {
	t.Helper()

	now := time.Now()
	bom := &BOM{ID: uuid.NewString(), ReferenceID: referenceID, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateBOM(context.Background(), bom))
	return bom
}

func TestCreateBOM_OnePerReference(t *testing.T) {
	s := setupTestStore(t)

	ref := createTestReference(t, s, nil)
	createTestBOM(t, s, ref.ID)

	second := &BOM{ID: uuid.NewString(), ReferenceID: ref.ID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	assert.ErrorIs(t, s.CreateBOM(context.Background(), second), ErrConflict)
}

func TestCreateReference_DuplicateCode(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ref := createTestReference(t, s, nil)

	dup := &Reference{
		ID:        uuid.NewString(),
		Code:      ref.Code,
		ProductID: ref.ProductID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	assert.ErrorIs(t, s.CreateReference(ctx, dup), ErrConflict)
}

func TestDeleteBOMCascade(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ref := createTestReference(t, s, nil)
	bom := createTestBOM(t, s, ref.ID)
	res := createTestResource(t, s, 10, 2)

	now := time.Now()
	br := &BOMResource{
		ID: uuid.NewString(), BOMID: bom.ID, ResourceID: res.ID,
		Quantity: 3, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateBOMResource(ctx, br))

	mp := &ManufacturingProcess{
		ID: uuid.NewString(), BOMID: bom.ID, ResourceID: res.ID,
		Quantity: 1, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateManufacturingProcess(ctx, mp))

	pr := &ProcessResource{
		ID: uuid.NewString(), ProcessID: mp.ID, ResourceID: res.ID,
		Quantity: 2, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateProcessResource(ctx, pr))

	require.NoError(t, s.DeleteBOMCascade(ctx, bom.ID))

	_, err := s.GetBOM(ctx, bom.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetBOMResource(ctx, br.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetManufacturingProcess(ctx, mp.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetProcessResource(ctx, pr.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The resource itself survives.
	_, err = s.GetResource(ctx, res.ID)
	assert.NoError(t, err)
}

func TestDeleteBOMCascade_UnlinksSpecifications(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ref := createTestReference(t, s, nil)
	bom := createTestBOM(t, s, ref.ID)

	customer := &Customer{ID: uuid.NewString(), Name: "Acme", CreatedAt: time.Now()}
	require.NoError(t, s.CreateCustomer(ctx, customer))
	need := &CustomerNeed{ID: uuid.NewString(), CustomerID: customer.ID, Description: "fast", CreatedAt: time.Now()}
	require.NoError(t, s.CreateCustomerNeed(ctx, need))
	req := &Requirement{ID: uuid.NewString(), CustomerNeedID: need.ID, Description: "spin", CreatedAt: time.Now()}
	require.NoError(t, s.CreateRequirement(ctx, req))
	spec := &Specification{ID: uuid.NewString(), RequirementID: req.ID, BOMID: &bom.ID, Description: "rpm", CreatedAt: time.Now()}
	require.NoError(t, s.CreateSpecification(ctx, spec))

	require.NoError(t, s.DeleteBOMCascade(ctx, bom.ID))

	got, err := s.GetSpecification(ctx, spec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BOMID)
}

func TestListBOMResourcesByResource(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	res := createTestResource(t, s, 5, 1)
	other := createTestResource(t, s, 7, 2)

	refA := createTestReference(t, s, nil)
	refB := createTestReference(t, s, nil)
	bomA := createTestBOM(t, s, refA.ID)
	bomB := createTestBOM(t, s, refB.ID)

	now := time.Now()
	for _, bomID := range []string{bomA.ID, bomB.ID} {
		br := &BOMResource{
			ID: uuid.NewString(), BOMID: bomID, ResourceID: res.ID,
			Quantity: 1, CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, s.CreateBOMResource(ctx, br))
	}
	require.NoError(t, s.CreateBOMResource(ctx, &BOMResource{
		ID: uuid.NewString(), BOMID: bomA.ID, ResourceID: other.ID,
		Quantity: 1, CreatedAt: now, UpdatedAt: now,
	}))

	items, err := s.ListBOMResourcesByResource(ctx, res.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestDeleteCustomerCascade(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, s, "creator@example.com")
	project := createTestProject(t, s, user.ID, nil)

	customer := &Customer{ID: uuid.NewString(), Name: "Acme", CreatedAt: time.Now()}
	require.NoError(t, s.CreateCustomer(ctx, customer))
	need := &CustomerNeed{ID: uuid.NewString(), CustomerID: customer.ID, Description: "fast", CreatedAt: time.Now()}
	require.NoError(t, s.CreateCustomerNeed(ctx, need))
	req := &Requirement{ID: uuid.NewString(), CustomerNeedID: need.ID, Description: "spin", CreatedAt: time.Now()}
	require.NoError(t, s.CreateRequirement(ctx, req))
	inv := &Invoice{
		ID: uuid.NewString(), CustomerID: customer.ID, ProjectID: project.ID,
		IssuedAt: time.Now(),
	}
	require.NoError(t, s.CreateInvoice(ctx, inv))

	require.NoError(t, s.DeleteCustomerCascade(ctx, customer.ID))

	_, err := s.GetCustomer(ctx, customer.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetCustomerNeed(ctx, need.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetRequirement(ctx, req.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetInvoice(ctx, inv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
