package auth

const (
	PermTimesheetRead    = "timesheets.read"
	PermTimesheetWrite   = "timesheets.write"
	PermTimesheetApprove = "timesheets.approve"
	PermTimesheetReadAll = "timesheets.read_all"
	PermAuditRead        = "audit.read"
)

var DefaultPermissions = []string{
	PermTimesheetRead,
	PermTimesheetWrite,
	PermTimesheetApprove,
	PermTimesheetReadAll,
	PermAuditRead,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermTimesheetRead,
		PermTimesheetWrite,
	},
	RoleManager: {
		PermTimesheetRead,
		PermTimesheetWrite,
		PermTimesheetApprove,
	},
	RoleHR: {
		PermTimesheetRead,
		PermTimesheetWrite,
		PermTimesheetApprove,
		PermTimesheetReadAll,
		PermAuditRead,
	},
	RoleSystemAdmin: {
		PermTimesheetRead,
		PermTimesheetWrite,
		PermTimesheetApprove,
		PermTimesheetReadAll,
		PermAuditRead,
	},
}
