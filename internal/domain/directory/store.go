package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"timesheets/internal/domain/timesheet"
)

// Store reads the employees, projects and tasks tables owned by the HR
// administration modules.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) TaskCatalog(ctx context.Context, taskIDs []string) (timesheet.TaskCatalog, error) {
	out := timesheet.TaskCatalog{}
	if len(taskIDs) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, project_id::text
    FROM tasks
    WHERE id::text = ANY($1)
  `, taskIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, projectID string
		if err := rows.Scan(&taskID, &projectID); err != nil {
			return nil, err
		}
		out[taskID] = projectID
	}
	return out, rows.Err()
}

func (s *Store) EmployeeIDByUserID(ctx context.Context, userID string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id::text FROM employees WHERE user_id = $1", userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func (s *Store) IsManagerOf(ctx context.Context, managerEmployeeID, employeeID string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM employees
    WHERE id::text = $1 AND manager_id::text = $2
  `, employeeID, managerEmployeeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) DirectReports(ctx context.Context, managerEmployeeID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text
    FROM employees
    WHERE manager_id::text = $1 AND status = 'active'
    ORDER BY last_name, first_name
  `, managerEmployeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) DisplayNames(ctx context.Context, employeeIDs []string) (map[string]string, error) {
	out := map[string]string{}
	if len(employeeIDs) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, first_name, last_name
    FROM employees
    WHERE id::text = ANY($1)
  `, employeeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var emp Employee
		if err := rows.Scan(&emp.ID, &emp.FirstName, &emp.LastName); err != nil {
			return nil, err
		}
		out[emp.ID] = emp.DisplayName()
	}
	return out, rows.Err()
}

// CreateEmployee and CreateTask back fixtures and local seeding; the HR
// administration modules own these rows in production.
func (s *Store) CreateEmployee(ctx context.Context, emp Employee) (string, error) {
	var managerID any
	if emp.ManagerID != "" {
		managerID = emp.ManagerID
	}
	var userID any
	if emp.UserID != "" {
		userID = emp.UserID
	}
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (user_id, first_name, last_name, email, manager_id)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id::text
  `, userID, emp.FirstName, emp.LastName, emp.Email, managerID).Scan(&id)
	return id, err
}

func (s *Store) CreateProject(ctx context.Context, name string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "INSERT INTO projects (name) VALUES ($1) RETURNING id::text", name).Scan(&id)
	return id, err
}

func (s *Store) CreateTask(ctx context.Context, projectID, name string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "INSERT INTO tasks (project_id, name) VALUES ($1,$2) RETURNING id::text", projectID, name).Scan(&id)
	return id, err
}
