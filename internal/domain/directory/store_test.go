package directory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheets/internal/platform/db/dbtest"
)

func TestStoreLookups(t *testing.T) {
	pool, cleanup := dbtest.SetupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)
	suffix := time.Now().UnixNano()

	managerID, err := store.CreateEmployee(ctx, Employee{UserID: fmt.Sprintf("mgr-%d", suffix), FirstName: "Grace", LastName: "Hopper"})
	require.NoError(t, err)
	reportID, err := store.CreateEmployee(ctx, Employee{UserID: fmt.Sprintf("emp-%d", suffix), FirstName: "Ada", LastName: "Lovelace", ManagerID: managerID})
	require.NoError(t, err)
	projectID, err := store.CreateProject(ctx, "Apollo")
	require.NoError(t, err)
	taskID, err := store.CreateTask(ctx, projectID, "Guidance")
	require.NoError(t, err)

	got, err := store.EmployeeIDByUserID(ctx, fmt.Sprintf("emp-%d", suffix))
	require.NoError(t, err)
	assert.Equal(t, reportID, got)

	missing, err := store.EmployeeIDByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, missing)

	ok, err := store.IsManagerOf(ctx, managerID, reportID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IsManagerOf(ctx, reportID, managerID)
	require.NoError(t, err)
	assert.False(t, ok)

	reports, err := store.DirectReports(ctx, managerID)
	require.NoError(t, err)
	assert.Equal(t, []string{reportID}, reports)

	catalog, err := store.TaskCatalog(ctx, []string{taskID, "not-a-uuid"})
	require.NoError(t, err)
	project, found := catalog.ProjectOf(taskID)
	assert.True(t, found)
	assert.Equal(t, projectID, project)
	_, found = catalog.ProjectOf("not-a-uuid")
	assert.False(t, found)

	names, err := store.DisplayNames(ctx, []string{reportID, managerID})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", names[reportID])
	assert.Equal(t, "Grace Hopper", names[managerID])
}
