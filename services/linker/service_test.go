package linker

import (
	"context"
	"testing"
	"time"

	"schoolsync-backend/lib/testutil"
	"schoolsync-backend/services/linker/db"

	"github.com/stretchr/testify/require"
)

func setupLinker(t *testing.T) (Service, context.Context) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/linker",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	t.Cleanup(cancel)

	return NewService(setup.DB), ctx
}

func TestReconcileAndConfirm(t *testing.T) {
	service, ctx := setupLinker(t)

	anaID, err := service.AddStudent(ctx, "Ana Beatriz Souza")
	require.NoError(t, err)
	_, err = service.AddStudent(ctx, "Pedro Cardoso")
	require.NoError(t, err)

	candidates, err := service.ReconcileStudents(ctx, []ExternalStudent{
		{ID: "ext-77", Name: "ANA BEATRIZ SOUZA"},
	}, DefaultThreshold)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, anaID, candidates[0].LocalID)
	require.Equal(t, StatusAutoConfirmed, candidates[0].Status)

	err = service.ConfirmCandidate(ctx, candidates[0].LocalID, candidates[0].ExternalID)
	require.NoError(t, err)

	students, err := service.Students(ctx)
	require.NoError(t, err)
	for _, s := range students {
		if s.ID == anaID {
			require.True(t, s.ExternalID.Valid)
			require.Equal(t, "ext-77", s.ExternalID.String)
		}
	}

	// a linked student no longer competes for candidates
	candidates, err = service.ReconcileStudents(ctx, []ExternalStudent{
		{ID: "ext-78", Name: "Ana Beatriz Souza"},
	}, DefaultThreshold)
	require.NoError(t, err)
	for _, c := range candidates {
		require.NotEqual(t, anaID, c.LocalID)
	}
}
