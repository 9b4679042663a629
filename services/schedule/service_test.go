package schedule

import (
	"context"
	"testing"
	"time"

	"schoolsync-backend/lib/testutil"
	"schoolsync-backend/services/schedule/db"

	"github.com/stretchr/testify/require"
)

func setupSchedule(t *testing.T) (Service, context.Context) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/schedule",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	t.Cleanup(cancel)

	return NewService(setup.DB), ctx
}

func stripTimestamps(cells []db.ScheduleCell) []db.ScheduleCell {
	out := make([]db.ScheduleCell, len(cells))
	for i, c := range cells {
		c.UpdatedAt = 0
		out[i] = c
	}
	return out
}

func cellBatch(classID int64) []Cell {
	one := int64(1)
	return []Cell{
		{
			LocalClassID: classID,
			Day:          "SEGUNDA",
			TimeSlot:     "07:10-08:00",
			RawText:      "MATEMÁTICA (João)",
			DisciplineID: &one,
			StaffID:      &one,
		},
		{
			LocalClassID: classID,
			Day:          "TERÇA",
			TimeSlot:     "07:10-08:00",
			RawText:      "HISTÓRIA",
		},
	}
}

func TestUpsertCellsIdempotent(t *testing.T) {
	service, ctx := setupSchedule(t)

	classID, err := service.AddClass(ctx, "6º ANO A")
	require.NoError(t, err)

	batch := cellBatch(classID)

	n, err := service.UpsertCells(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, len(batch), n)

	first, err := service.Cells(ctx, classID)
	require.NoError(t, err)
	require.Len(t, first, len(batch))

	_, err = service.UpsertCells(ctx, batch)
	require.NoError(t, err)

	second, err := service.Cells(ctx, classID)
	require.NoError(t, err)
	require.Equal(t, stripTimestamps(first), stripTimestamps(second))
}

func TestUpsertCellsOverwrites(t *testing.T) {
	service, ctx := setupSchedule(t)

	classID, err := service.AddClass(ctx, "6º ANO A")
	require.NoError(t, err)

	batch := cellBatch(classID)
	_, err = service.UpsertCells(ctx, batch)
	require.NoError(t, err)

	batch[1].RawText = "GEOGRAFIA"
	_, err = service.UpsertCells(ctx, batch)
	require.NoError(t, err)

	cells, err := service.Cells(ctx, classID)
	require.NoError(t, err)
	require.Len(t, cells, 2)

	var found bool
	for _, c := range cells {
		if c.Day == "TERÇA" {
			found = true
			require.Equal(t, "GEOGRAFIA", c.RawText)
		}
	}
	require.True(t, found)
}

func TestUpsertCellsAtomic(t *testing.T) {
	service, ctx := setupSchedule(t)

	classID, err := service.AddClass(ctx, "6º ANO A")
	require.NoError(t, err)

	_, err = service.UpsertCells(ctx, cellBatch(classID))
	require.NoError(t, err)
	before, err := service.Cells(ctx, classID)
	require.NoError(t, err)

	days := []string{"SEGUNDA", "TERÇA", "QUARTA", "QUINTA", "SEXTA"}
	var batch []Cell
	for i := 0; i < 10; i++ {
		batch = append(batch, Cell{
			LocalClassID: classID,
			Day:          days[i%len(days)],
			TimeSlot:     "13:00-13:50",
			RawText:      "CIÊNCIAS",
		})
	}
	// one bad row in the middle
	batch[6].TimeSlot = ""

	_, err = service.UpsertCells(ctx, batch)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, 6, verr.Index)

	after, err := service.Cells(ctx, classID)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestUpsertCellsRejectsEmptyBatch(t *testing.T) {
	service, ctx := setupSchedule(t)

	_, err := service.UpsertCells(ctx, nil)
	require.Error(t, err)
}

func TestMapClasses(t *testing.T) {
	service, ctx := setupSchedule(t)

	aID, err := service.AddClass(ctx, "6º Ano A")
	require.NoError(t, err)
	_, err = service.AddClass(ctx, "7º Ano B")
	require.NoError(t, err)
	dupA, err := service.AddClass(ctx, "8º ANO C")
	require.NoError(t, err)
	dupB, err := service.AddClass(ctx, "8º Ano C")
	require.NoError(t, err)

	report, err := service.MapClasses(ctx, []ExternalClass{
		{ID: "1203", Name: "6º ANO A"},
		{ID: "1204", Name: "8º ANO C"},
		{ID: "1205", Name: "9º ANO D"},
	})
	require.NoError(t, err)

	require.Equal(t, map[string]int64{"1203": aID}, report.Applied)
	require.Equal(t, map[string][]int64{"1204": {dupA, dupB}}, report.Ambiguous)
	require.Equal(t, []string{"1205"}, report.Unmatched)
}

func TestMapClassesReusesExistingMapping(t *testing.T) {
	service, ctx := setupSchedule(t)

	aID, err := service.AddClass(ctx, "6º Ano A")
	require.NoError(t, err)

	report, err := service.MapClasses(ctx, []ExternalClass{{ID: "1203", Name: "6º ANO A"}})
	require.NoError(t, err)
	require.Equal(t, aID, report.Applied["1203"])

	// renaming the local class does not break the stored mapping
	report, err = service.MapClasses(ctx, []ExternalClass{{ID: "1203", Name: "SEXTO ANO A"}})
	require.NoError(t, err)
	require.Equal(t, aID, report.Applied["1203"])
	require.Empty(t, report.Unmatched)
}

func TestConfirmClassMapping(t *testing.T) {
	service, ctx := setupSchedule(t)

	aID, err := service.AddClass(ctx, "8º ANO C")
	require.NoError(t, err)
	_, err = service.AddClass(ctx, "8º Ano C")
	require.NoError(t, err)

	report, err := service.MapClasses(ctx, []ExternalClass{{ID: "1204", Name: "8º ANO C"}})
	require.NoError(t, err)
	require.Len(t, report.Ambiguous, 1)

	require.NoError(t, service.ConfirmClassMapping(ctx, "1204", aID))

	report, err = service.MapClasses(ctx, []ExternalClass{{ID: "1204", Name: "8º ANO C"}})
	require.NoError(t, err)
	require.Equal(t, aID, report.Applied["1204"])
}
