package timesheet

import (
	"context"
	"time"

	"timesheets/internal/platform/events"
)

// Directory is the read-only view of the employee directory and the
// project/task catalog. Display names never affect lifecycle decisions.
type Directory interface {
	TaskCatalog(ctx context.Context, taskIDs []string) (TaskCatalog, error)
	EmployeeIDByUserID(ctx context.Context, userID string) (string, error)
	IsManagerOf(ctx context.Context, managerEmployeeID, employeeID string) (bool, error)
	DirectReports(ctx context.Context, managerEmployeeID string) ([]string, error)
	DisplayNames(ctx context.Context, employeeIDs []string) (map[string]string, error)
}

// Permissions answers whether a role holds a permission key.
type Permissions interface {
	HasPermission(ctx context.Context, roleName, permission string) (bool, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, entityType, entityID string, before, after any) error
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type entryEvent struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId"`
	ProjectID  string    `json:"projectId"`
	TaskID     string    `json:"taskId"`
	WeekStart  string    `json:"weekStartDate"`
	Status     Status    `json:"status"`
	ActorID    string    `json:"actorId"`
	TotalHours string    `json:"totalHours"`
	At         time.Time `json:"at"`
}

func newEntryEvent(action string, actor Actor, e Entry, at time.Time) events.Event {
	return events.Event{
		Type:       action,
		Key:        e.EmployeeID,
		OccurredAt: at,
		Payload: entryEvent{
			ID:         e.ID,
			EmployeeID: e.EmployeeID,
			ProjectID:  e.ProjectID,
			TaskID:     e.TaskID,
			WeekStart:  WeekKey(e.WeekStartDate),
			Status:     e.Status,
			ActorID:    actor.UserID,
			TotalHours: TaskTotal(e).String(),
			At:         at,
		},
	}
}
