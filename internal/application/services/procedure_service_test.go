package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarmaint/backend/internal/application/services"
	"github.com/solarmaint/backend/internal/domain/entities"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

var (
	adminIdentity = entities.Identity{UserID: "admin-1", Role: entities.RoleAdmin}
	userIdentity  = entities.Identity{UserID: "user-1", Role: entities.RoleUser}
)

func TestProcedureService_Create(t *testing.T) {
	procedures := newStubProcedureRepo()
	svc := services.NewProcedureService(procedures)

	created, err := svc.Create(context.Background(), adminIdentity, services.ProcedureInput{
		Title:    "Inverter reset",
		Category: "electrical",
		Steps: []services.StepInput{
			{Title: "Power down", Order: 1},
			{Title: "Reset controller", Order: 2},
		},
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Equal(t, "admin-1", created.CreatedBy)
	require.Len(t, created.Steps, 2)
	assert.Equal(t, created.ID, created.Steps[0].ProcedureID)
	assert.Equal(t, entities.ValidationManual, created.Steps[0].ValidationType)
}

func TestProcedureService_CreateRequiresAdmin(t *testing.T) {
	svc := services.NewProcedureService(newStubProcedureRepo())

	_, err := svc.Create(context.Background(), userIdentity, services.ProcedureInput{Title: "x"})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeForbidden, appErr.Type)
}

func TestProcedureService_UpdateReplacesSteps(t *testing.T) {
	procedures := newStubProcedureRepo()
	seedProcedure(t, procedures)
	svc := services.NewProcedureService(procedures)

	updated, err := svc.Update(context.Background(), adminIdentity, "proc-1", services.ProcedureInput{
		Title: "Inverter reset v2",
		Steps: []services.StepInput{
			{Title: "Isolate the array", Order: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Inverter reset v2", updated.Title)
	require.Len(t, updated.Steps, 1)

	// The old step rows are gone, not merged.
	remaining, err := procedures.ListSteps(context.Background(), "proc-1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Isolate the array", remaining[0].Title)
}

func TestProcedureService_DeleteIsSoft(t *testing.T) {
	procedures := newStubProcedureRepo()
	procedure := seedProcedure(t, procedures)
	svc := services.NewProcedureService(procedures)

	require.NoError(t, svc.Delete(context.Background(), adminIdentity, procedure.ID))

	// The row survives so execution history keeps a valid reference.
	stored, err := procedures.GetByID(context.Background(), procedure.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestProcedureService_DeleteRequiresAdmin(t *testing.T) {
	procedures := newStubProcedureRepo()
	procedure := seedProcedure(t, procedures)
	svc := services.NewProcedureService(procedures)

	err := svc.Delete(context.Background(), userIdentity, procedure.ID)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeForbidden, appErr.Type)
}
