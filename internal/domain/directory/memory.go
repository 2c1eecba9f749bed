package directory

import (
	"context"
	"sort"
	"sync"

	"timesheets/internal/domain/timesheet"
)

// Memory is an in-process directory used by tests and local runs.
type Memory struct {
	mu        sync.RWMutex
	employees map[string]Employee
	tasks     map[string]Task
}

func NewMemory() *Memory {
	return &Memory{employees: map[string]Employee{}, tasks: map[string]Task{}}
}

func (m *Memory) AddEmployee(emp Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
}

func (m *Memory) AddTask(task Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
}

func (m *Memory) TaskCatalog(_ context.Context, taskIDs []string) (timesheet.TaskCatalog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := timesheet.TaskCatalog{}
	for _, id := range taskIDs {
		if task, ok := m.tasks[id]; ok {
			out[id] = task.ProjectID
		}
	}
	return out, nil
}

func (m *Memory) EmployeeIDByUserID(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, emp := range m.employees {
		if emp.UserID == userID {
			return emp.ID, nil
		}
	}
	return "", nil
}

func (m *Memory) IsManagerOf(_ context.Context, managerEmployeeID, employeeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	emp, ok := m.employees[employeeID]
	return ok && managerEmployeeID != "" && emp.ManagerID == managerEmployeeID, nil
}

func (m *Memory) DirectReports(_ context.Context, managerEmployeeID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, emp := range m.employees {
		if emp.ManagerID == managerEmployeeID {
			out = append(out, emp.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) DisplayNames(_ context.Context, employeeIDs []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]string{}
	for _, id := range employeeIDs {
		if emp, ok := m.employees[id]; ok {
			out[id] = emp.DisplayName()
		}
	}
	return out, nil
}
