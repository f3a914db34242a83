package access

// Modules of the permission catalog.
const (
	ModuleCustomers = "CUSTOMERS"
	ModuleProducts  = "PRODUCTS"
	ModuleUsers     = "USERS"
	ModuleAudit     = "AUDIT"
	ModuleDashboard = "DASHBOARD"
	ModuleSystem    = "SYSTEM"
)

// Actions of the permission catalog.
const (
	ActionView   = "VIEW"
	ActionCreate = "CREATE"
	ActionEdit   = "EDIT"
	ActionDelete = "DELETE"
	ActionExport = "EXPORT"
)

// AdministratorRoleName identifies the highest-privilege role for the
// last-administrator guard. The role itself is seeded data; nothing grants
// it permissions implicitly.
const AdministratorRoleName = "Administrator"

// BuiltinPermissions is the catalog ensured at bootstrap.
var BuiltinPermissions = []Permission{
	{Module: ModuleCustomers, Action: ActionView, Description: "View customers"},
	{Module: ModuleCustomers, Action: ActionCreate, Description: "Create customers"},
	{Module: ModuleCustomers, Action: ActionEdit, Description: "Edit customers"},
	{Module: ModuleCustomers, Action: ActionDelete, Description: "Delete customers"},
	{Module: ModuleCustomers, Action: ActionExport, Description: "Export customer reports"},
	{Module: ModuleProducts, Action: ActionView, Description: "View products"},
	{Module: ModuleProducts, Action: ActionCreate, Description: "Create products"},
	{Module: ModuleProducts, Action: ActionEdit, Description: "Edit products"},
	{Module: ModuleProducts, Action: ActionDelete, Description: "Delete products"},
	{Module: ModuleProducts, Action: ActionExport, Description: "Export product reports"},
	{Module: ModuleUsers, Action: ActionView, Description: "View users"},
	{Module: ModuleUsers, Action: ActionCreate, Description: "Create users"},
	{Module: ModuleUsers, Action: ActionEdit, Description: "Edit users and roles"},
	{Module: ModuleUsers, Action: ActionDelete, Description: "Deactivate and delete users"},
	{Module: ModuleAudit, Action: ActionView, Description: "Read the audit log"},
	{Module: ModuleDashboard, Action: ActionView, Description: "Access the dashboard"},
}
