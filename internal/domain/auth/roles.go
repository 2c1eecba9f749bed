package auth

const (
	RoleEmployee    = "employee"
	RoleManager     = "manager"
	RoleHR          = "hr"
	RoleSystemAdmin = "system_admin"
)

type UserContext struct {
	UserID     string
	EmployeeID string
	RoleName   string
}
