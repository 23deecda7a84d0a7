// Package authz implements project-scoped authorization for partforge.
//
// # Project Resolution
//
// Sub-resources (BOMs, line items, documents, CAD files, simulations,
// resources, the customer need/requirement/specification chain, workflow
// steps, tasks) never store a direct project pointer. The Resolver walks
// the ownership graph upward on every check:
//
//   - BOM -> Reference -> Project
//   - BOMResource / ManufacturingProcess -> BOM -> Reference -> Project
//   - ProcessResource -> ManufacturingProcess -> BOM -> Reference -> Project
//   - CADFile / Document / Simulation -> Reference -> Project
//   - Resource -> all line items referencing it -> their BOMs -> Projects
//   - Supplier -> its Resources -> the same fan-out
//   - CustomerNeed / Requirement / Specification -> Customer's Invoices -> Projects
//   - Product -> its References -> Projects
//   - Task / WorkflowStep -> Workflow -> Project
//
// Fan-out paths may yield several projects; the set is de-duplicated.
//
// # Access Guard
//
// The Guard decides allow/deny for (user, project set, action):
//
//  1. user.FullAccess allows unconditionally.
//  2. An empty project set is denied with reason ProjectRequired.
//  3. Per project: the creator always passes; otherwise the user's role
//     names in that project are intersected with the project's
//     requiredRoles[action] list.
//  4. Any single allowing project suffices (OR semantics). Otherwise the
//     denial reason is InsufficientRole.
//
// The resolved set and the action travel together as an explicit
// AuthorizationContext value from resolver to guard.
package authz
