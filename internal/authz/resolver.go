// ABOUTME: Project resolver mapping any sub-resource to its governing project set
// ABOUTME: Sub-resources never store a project pointer; every check re-derives it

package authz

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/partforge/partforge/internal/store"
)

// ErrUnlinked is returned when a resolution chain terminates without
// reaching a project (e.g. a reference with no project assigned).
var ErrUnlinked = errors.New("no governing project")

// ResourceKind tags the entity type a resolution starts from.
type ResourceKind string

const (
	KindProject              ResourceKind = "project"
	KindReference            ResourceKind = "reference"
	KindBOM                  ResourceKind = "bom"
	KindBOMResource          ResourceKind = "bomResource"
	KindManufacturingProcess ResourceKind = "manufacturingProcess"
	KindProcessResource      ResourceKind = "processResource"
	KindCADFile              ResourceKind = "cadFile"
	KindDocument             ResourceKind = "document"
	KindSimulation           ResourceKind = "simulation"
	KindResource             ResourceKind = "resource"
	KindSupplier             ResourceKind = "supplier"
	KindCustomer             ResourceKind = "customer"
	KindCustomerNeed         ResourceKind = "customerNeed"
	KindRequirement          ResourceKind = "requirement"
	KindSpecification        ResourceKind = "specification"
	KindProduct              ResourceKind = "product"
	KindInvoice              ResourceKind = "invoice"
	KindWorkflow             ResourceKind = "workflow"
	KindWorkflowStep         ResourceKind = "workflowStep"
	KindTask                 ResourceKind = "task"
)

// Ref identifies the sub-resource to resolve.
type Ref struct {
	Kind ResourceKind
	ID   string
}

// ProjectSet is a de-duplicated set of project IDs.
type ProjectSet map[string]struct{}

// Add inserts a project ID into the set.
func (ps ProjectSet) Add(id string) {
	ps[id] = struct{}{}
}

// Contains reports whether the set holds the given project ID.
func (ps ProjectSet) Contains(id string) bool {
	_, ok := ps[id]
	return ok
}

// IDs returns the set's project IDs in sorted order.
func (ps ProjectSet) IDs() []string {
	ids := make([]string, 0, len(ps))
	for id := range ps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolverStore is the slice of the entity store the resolver walks.
type ResolverStore interface {
	GetProject(ctx context.Context, id string) (*store.Project, error)
	GetReference(ctx context.Context, id string) (*store.Reference, error)
	GetBOM(ctx context.Context, id string) (*store.BOM, error)
	GetBOMResource(ctx context.Context, id string) (*store.BOMResource, error)
	GetManufacturingProcess(ctx context.Context, id string) (*store.ManufacturingProcess, error)
	GetProcessResource(ctx context.Context, id string) (*store.ProcessResource, error)
	GetCADFile(ctx context.Context, id string) (*store.CADFile, error)
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	GetSimulation(ctx context.Context, id string) (*store.Simulation, error)
	GetResource(ctx context.Context, id string) (*store.Resource, error)
	GetSupplier(ctx context.Context, id string) (*store.Supplier, error)
	GetCustomer(ctx context.Context, id string) (*store.Customer, error)
	GetCustomerNeed(ctx context.Context, id string) (*store.CustomerNeed, error)
	GetRequirement(ctx context.Context, id string) (*store.Requirement, error)
	GetSpecification(ctx context.Context, id string) (*store.Specification, error)
	GetProduct(ctx context.Context, id string) (*store.Product, error)
	GetInvoice(ctx context.Context, id string) (*store.Invoice, error)
	GetWorkflow(ctx context.Context, id string) (*store.Workflow, error)
	GetWorkflowStep(ctx context.Context, id string) (*store.WorkflowStep, error)
	GetTask(ctx context.Context, id string) (*store.Task, error)
	ListBOMResourcesByResource(ctx context.Context, resourceID string) ([]*store.BOMResource, error)
	ListProcessResourcesByResource(ctx context.Context, resourceID string) ([]*store.ProcessResource, error)
	ListResourcesBySupplier(ctx context.Context, supplierID string) ([]*store.Resource, error)
	ListReferencesByProduct(ctx context.Context, productID string) ([]*store.Reference, error)
	ListInvoiceProjectIDs(ctx context.Context, customerID string) ([]string, error)
}

// Resolver walks the ownership graph upward from a sub-resource to the
// project(s) that govern access to it.
type Resolver struct {
	store ResolverStore
}

// NewResolver creates a resolver over the given store.
func NewResolver(s ResolverStore) *Resolver {
	return &Resolver{store: s}
}

// ResolveProjects maps a sub-resource reference to the set of governing
// project IDs. Returns store.ErrNotFound (wrapped) when an intermediate
// entity is missing, and ErrUnlinked when a single-ownership chain ends
// without a project. Fan-out kinds (resource, supplier, product, customer
// chains) may resolve to an empty set; the guard denies those by default.
func (r *Resolver) ResolveProjects(ctx context.Context, ref Ref) (ProjectSet, error) {
	switch ref.Kind {
	case KindProject:
		if _, err := r.store.GetProject(ctx, ref.ID); err != nil {
			return nil, fmt.Errorf("resolving project: %w", err)
		}
		return singleton(ref.ID), nil

	case KindReference:
		return r.fromReference(ctx, ref.ID)

	case KindBOM:
		return r.fromBOM(ctx, ref.ID)

	case KindBOMResource:
		br, err := r.store.GetBOMResource(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving BOM resource: %w", err)
		}
		return r.fromBOM(ctx, br.BOMID)

	case KindManufacturingProcess:
		mp, err := r.store.GetManufacturingProcess(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving manufacturing process: %w", err)
		}
		return r.fromBOM(ctx, mp.BOMID)

	case KindProcessResource:
		pr, err := r.store.GetProcessResource(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving process resource: %w", err)
		}
		mp, err := r.store.GetManufacturingProcess(ctx, pr.ProcessID)
		if err != nil {
			return nil, fmt.Errorf("resolving owning process: %w", err)
		}
		return r.fromBOM(ctx, mp.BOMID)

	case KindCADFile:
		f, err := r.store.GetCADFile(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving CAD file: %w", err)
		}
		return r.fromReference(ctx, f.ReferenceID)

	case KindDocument:
		d, err := r.store.GetDocument(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving document: %w", err)
		}
		return r.fromReference(ctx, d.ReferenceID)

	case KindSimulation:
		sim, err := r.store.GetSimulation(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving simulation: %w", err)
		}
		return r.fromReference(ctx, sim.ReferenceID)

	case KindResource:
		if _, err := r.store.GetResource(ctx, ref.ID); err != nil {
			return nil, fmt.Errorf("resolving resource: %w", err)
		}
		return r.fromResourceFanOut(ctx, ref.ID)

	case KindSupplier:
		if _, err := r.store.GetSupplier(ctx, ref.ID); err != nil {
			return nil, fmt.Errorf("resolving supplier: %w", err)
		}
		resources, err := r.store.ListResourcesBySupplier(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("listing supplier resources: %w", err)
		}
		set := ProjectSet{}
		for _, res := range resources {
			sub, err := r.fromResourceFanOut(ctx, res.ID)
			if err != nil {
				return nil, err
			}
			for id := range sub {
				set.Add(id)
			}
		}
		return set, nil

	case KindCustomer:
		if _, err := r.store.GetCustomer(ctx, ref.ID); err != nil {
			return nil, fmt.Errorf("resolving customer: %w", err)
		}
		return r.fromCustomer(ctx, ref.ID)

	case KindCustomerNeed:
		n, err := r.store.GetCustomerNeed(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving customer need: %w", err)
		}
		return r.fromCustomer(ctx, n.CustomerID)

	case KindRequirement:
		req, err := r.store.GetRequirement(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving requirement: %w", err)
		}
		n, err := r.store.GetCustomerNeed(ctx, req.CustomerNeedID)
		if err != nil {
			return nil, fmt.Errorf("resolving owning need: %w", err)
		}
		return r.fromCustomer(ctx, n.CustomerID)

	case KindSpecification:
		sp, err := r.store.GetSpecification(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving specification: %w", err)
		}
		req, err := r.store.GetRequirement(ctx, sp.RequirementID)
		if err != nil {
			return nil, fmt.Errorf("resolving owning requirement: %w", err)
		}
		n, err := r.store.GetCustomerNeed(ctx, req.CustomerNeedID)
		if err != nil {
			return nil, fmt.Errorf("resolving owning need: %w", err)
		}
		return r.fromCustomer(ctx, n.CustomerID)

	case KindProduct:
		if _, err := r.store.GetProduct(ctx, ref.ID); err != nil {
			return nil, fmt.Errorf("resolving product: %w", err)
		}
		refs, err := r.store.ListReferencesByProduct(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("listing product references: %w", err)
		}
		set := ProjectSet{}
		for _, pr := range refs {
			if pr.ProjectID != nil {
				set.Add(*pr.ProjectID)
			}
		}
		return set, nil

	case KindInvoice:
		inv, err := r.store.GetInvoice(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving invoice: %w", err)
		}
		return singleton(inv.ProjectID), nil

	case KindWorkflow:
		w, err := r.store.GetWorkflow(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving workflow: %w", err)
		}
		return singleton(w.ProjectID), nil

	case KindWorkflowStep:
		return r.fromWorkflowStep(ctx, ref.ID)

	case KindTask:
		t, err := r.store.GetTask(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving task: %w", err)
		}
		return r.fromWorkflowStep(ctx, t.StepID)

	default:
		return nil, fmt.Errorf("unknown resource kind %q", ref.Kind)
	}
}

// fromReference resolves a reference's single governing project.
func (r *Resolver) fromReference(ctx context.Context, referenceID string) (ProjectSet, error) {
	ref, err := r.store.GetReference(ctx, referenceID)
	if err != nil {
		return nil, fmt.Errorf("resolving reference: %w", err)
	}
	if ref.ProjectID == nil {
		return nil, fmt.Errorf("reference %s: %w", referenceID, ErrUnlinked)
	}
	return singleton(*ref.ProjectID), nil
}

// fromBOM resolves a BOM's single governing project through its reference.
func (r *Resolver) fromBOM(ctx context.Context, bomID string) (ProjectSet, error) {
	bom, err := r.store.GetBOM(ctx, bomID)
	if err != nil {
		return nil, fmt.Errorf("resolving BOM: %w", err)
	}
	return r.fromReference(ctx, bom.ReferenceID)
}

// fromResourceFanOut unions the projects of every BOM and process whose
// line items reference the resource. A resource not yet attached to any
// line item yields an empty set.
func (r *Resolver) fromResourceFanOut(ctx context.Context, resourceID string) (ProjectSet, error) {
	set := ProjectSet{}

	bomItems, err := r.store.ListBOMResourcesByResource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("listing dependent BOM resources: %w", err)
	}
	for _, br := range bomItems {
		sub, err := r.fromBOM(ctx, br.BOMID)
		if err != nil {
			if errors.Is(err, ErrUnlinked) {
				continue
			}
			return nil, err
		}
		for id := range sub {
			set.Add(id)
		}
	}

	procItems, err := r.store.ListProcessResourcesByResource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("listing dependent process resources: %w", err)
	}
	for _, pr := range procItems {
		mp, err := r.store.GetManufacturingProcess(ctx, pr.ProcessID)
		if err != nil {
			return nil, fmt.Errorf("resolving owning process: %w", err)
		}
		sub, err := r.fromBOM(ctx, mp.BOMID)
		if err != nil {
			if errors.Is(err, ErrUnlinked) {
				continue
			}
			return nil, err
		}
		for id := range sub {
			set.Add(id)
		}
	}

	return set, nil
}

// fromCustomer unions the projects of a customer's invoices. Any one of
// those projects satisfies a check on the need/requirement/specification
// chain.
func (r *Resolver) fromCustomer(ctx context.Context, customerID string) (ProjectSet, error) {
	ids, err := r.store.ListInvoiceProjectIDs(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing customer invoice projects: %w", err)
	}
	set := ProjectSet{}
	for _, id := range ids {
		set.Add(id)
	}
	return set, nil
}

// fromWorkflowStep resolves a step's single project through its workflow.
func (r *Resolver) fromWorkflowStep(ctx context.Context, stepID string) (ProjectSet, error) {
	ws, err := r.store.GetWorkflowStep(ctx, stepID)
	if err != nil {
		return nil, fmt.Errorf("resolving workflow step: %w", err)
	}
	w, err := r.store.GetWorkflow(ctx, ws.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("resolving owning workflow: %w", err)
	}
	return singleton(w.ProjectID), nil
}

func singleton(projectID string) ProjectSet {
	return ProjectSet{projectID: {}}
}
