package auth

// PermissionGroup tags catalog entries for display grouping.
type PermissionGroup string

const (
	GroupUsers   PermissionGroup = "Users"
	GroupRoles   PermissionGroup = "Roles"
	GroupTenants PermissionGroup = "Tenants"
	GroupReports PermissionGroup = "Reports"
)

// Permission names. The catalog is populated once at seed time and is
// immutable afterwards.
const (
	PermUsersCreate = "Users.Create"
	PermUsersRead   = "Users.Read"
	PermUsersUpdate = "Users.Update"
	PermUsersDelete = "Users.Delete"

	PermRolesCreate            = "Roles.Create"
	PermRolesRead              = "Roles.Read"
	PermRolesUpdate            = "Roles.Update"
	PermRolesDelete            = "Roles.Delete"
	PermRolesAssignPermissions = "Roles.AssignPermissions"

	PermTenantsCreate = "Tenants.Create"
	PermTenantsRead   = "Tenants.Read"
	PermTenantsUpdate = "Tenants.Update"

	PermRoleGroupsCreate      = "RoleGroups.Create"
	PermRoleGroupsRead        = "RoleGroups.Read"
	PermRoleGroupsUpdate      = "RoleGroups.Update"
	PermRoleGroupsDelete      = "RoleGroups.Delete"
	PermRoleGroupsAssignRoles = "RoleGroups.AssignRoles"

	PermReportsView   = "Reports.View"
	PermReportsExport = "Reports.Export"
)

// Catalog is the seed-time permission set.
var Catalog = []Permission{
	{Name: PermUsersCreate, DisplayName: "Create Users", Group: GroupUsers, Description: "Allows creating new users"},
	{Name: PermUsersRead, DisplayName: "View Users", Group: GroupUsers, Description: "Allows viewing user list and details"},
	{Name: PermUsersUpdate, DisplayName: "Update Users", Group: GroupUsers, Description: "Allows updating user information"},
	{Name: PermUsersDelete, DisplayName: "Delete Users", Group: GroupUsers, Description: "Allows deleting users"},

	{Name: PermRolesCreate, DisplayName: "Create Roles", Group: GroupRoles, Description: "Allows creating new roles"},
	{Name: PermRolesRead, DisplayName: "View Roles", Group: GroupRoles, Description: "Allows viewing role list and details"},
	{Name: PermRolesUpdate, DisplayName: "Update Roles", Group: GroupRoles, Description: "Allows updating role information"},
	{Name: PermRolesDelete, DisplayName: "Delete Roles", Group: GroupRoles, Description: "Allows deleting roles"},
	{Name: PermRolesAssignPermissions, DisplayName: "Assign Permissions", Group: GroupRoles, Description: "Allows assigning permissions to roles"},

	{Name: PermTenantsCreate, DisplayName: "Create Tenants", Group: GroupTenants, Description: "Allows creating new tenants"},
	{Name: PermTenantsRead, DisplayName: "View Tenant", Group: GroupTenants, Description: "Allows viewing tenant information"},
	{Name: PermTenantsUpdate, DisplayName: "Update Tenant", Group: GroupTenants, Description: "Allows updating tenant settings"},

	{Name: PermRoleGroupsCreate, DisplayName: "Create Role Groups", Group: GroupRoles, Description: "Allows creating new role groups"},
	{Name: PermRoleGroupsRead, DisplayName: "View Role Groups", Group: GroupRoles, Description: "Allows viewing role group list and details"},
	{Name: PermRoleGroupsUpdate, DisplayName: "Update Role Groups", Group: GroupRoles, Description: "Allows updating role group information"},
	{Name: PermRoleGroupsDelete, DisplayName: "Delete Role Groups", Group: GroupRoles, Description: "Allows deleting role groups"},
	{Name: PermRoleGroupsAssignRoles, DisplayName: "Assign Roles to Groups", Group: GroupRoles, Description: "Allows assigning roles to role groups"},

	{Name: PermReportsView, DisplayName: "View Reports", Group: GroupReports, Description: "Allows viewing reports"},
	{Name: PermReportsExport, DisplayName: "Export Reports", Group: GroupReports, Description: "Allows exporting reports"},
}
