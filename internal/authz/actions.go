// ABOUTME: Action vocabulary checked against per-project required-role lists
// ABOUTME: Action names must match the keys projects store in requiredRoles

package authz

// Action names a guarded operation. The set of actions is closed; role
// names remain runtime-extensible per project.
type Action string

const (
	ActionCreateBOM         Action = "createBOM"
	ActionViewBOM           Action = "viewBOM"
	ActionEditBOM           Action = "editBOM"
	ActionDeleteBOM         Action = "deleteBOM"
	ActionViewCADFiles      Action = "viewCADFiles"
	ActionManageCADFiles    Action = "manageCADFiles"
	ActionViewSimulations   Action = "viewSimulations"
	ActionManageSimulations Action = "manageSimulations"
	ActionManageNeeds       Action = "manageCustomerNeeds"
	ActionManageReqs        Action = "manageRequirements"
	ActionViewReqs          Action = "viewRequirements"
	ActionBOMAndSuppliers   Action = "BOMAndSuppliers"
	ActionManageSuppliers   Action = "manageSuppliers"
	ActionViewSuppliers     Action = "viewSuppliers"
	ActionCreateResource    Action = "createResource"
	ActionViewResources     Action = "viewResources"
	ActionEditResource      Action = "editResource"
	ActionDeleteResource    Action = "deleteResource"
	ActionManageInvoices    Action = "manageInvoices"
	ActionCreateReference   Action = "createReference"
	ActionUpdateReference   Action = "updateReference"
	ActionDeleteReference   Action = "deleteReference"
	ActionViewProject       Action = "viewProject"
	ActionEditProject       Action = "editProject"
	ActionViewProjectRoles  Action = "viewProjectRoles"
	ActionEditWorkflow      Action = "editWorkflow"
	ActionViewWorkflow      Action = "viewWorkflow"
	ActionManageTasks       Action = "manageTasks"
	ActionViewTasks         Action = "viewTasks"
)
