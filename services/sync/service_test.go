package sync

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"schoolsync-backend/lib/browser"
	"schoolsync-backend/lib/testutil"
	"schoolsync-backend/scrapers/diario"
	"schoolsync-backend/services/linker"
	linkerdb "schoolsync-backend/services/linker/db"
	"schoolsync-backend/services/resolver"
	resolverdb "schoolsync-backend/services/resolver/db"
	scheduledb "schoolsync-backend/services/schedule/db"

	"github.com/stretchr/testify/require"
)

const loginUrl = "https://diario.example.edu.br/login.aspx"
const pageUrl = "https://diario.example.edu.br/diario.aspx"

func setupSync(t *testing.T) (Service, *sql.DB, context.Context) {
	schema := strings.Join([]string{
		resolverdb.Schema,
		scheduledb.Schema,
		linkerdb.Schema,
	}, "\n")

	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/sync",
		DbSchema: schema,
	})
	t.Cleanup(cleanup)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	t.Cleanup(cancel)

	return NewService(setup.DB, Options{}), setup.DB, ctx
}

func authenticatedNavigator(t *testing.T, fake *browser.Fake) *diario.Navigator {
	t.Helper()
	fake.Present[`input[name="txtUsuario"]`] = true
	fake.Present[`input[name="txtSenha"]`] = true
	fake.Present[`button[type="submit"]`] = true
	fake.OnLocation = func(polls int) string {
		return "https://diario.example.edu.br/home.aspx"
	}

	controller := diario.NewSessionController(fake, diario.SessionOptions{
		LoginUrl: loginUrl,
	})
	require.NoError(t, controller.Login(context.Background(), "user", "hunter2"))

	nav, err := diario.NewNavigator(controller, diario.NavigatorOptions{
		PageUrl:        pageUrl,
		ResultsTimeout: time.Millisecond * 300,
	})
	require.NoError(t, err)
	return nav
}

func resultsPageFake(t *testing.T) *browser.Fake {
	t.Helper()
	fake := browser.NewFake()
	fake.Html[`select[name="cboTurma"]`] = `
<select name="cboTurma">
	<option value="">Selecione</option>
	<option value="1203">6º ANO A</option>
</select>`
	fake.Html[`select[name="cboDisciplina"]`] = `
<select name="cboDisciplina">
	<option value="">Selecione</option>
	<option value="10">Matemática</option>
</select>`
	fake.Present[`select[name="cboBimestre"]`] = true
	fake.Present[`button[name="btnExibirAlunos"]`] = true
	fake.Html[`table#grdAlunos`] = `
<table id="grdAlunos">
	<tr><th>Horário</th><th>Segunda</th></tr>
	<tr><td>07:10-08:00</td><td>MATEMÁTICA (João)</td></tr>
	<tr><td>08:00-08:50</td><td></td></tr>
</table>`
	return fake
}

func TestRunImport(t *testing.T) {
	service, _, ctx := setupSync(t)

	classID, err := service.Schedule().AddClass(ctx, "6º Ano A")
	require.NoError(t, err)
	disciplineID, err := service.Resolver().AddDiscipline(ctx, "Matemática")
	require.NoError(t, err)
	staffID, err := service.Resolver().AddStaff(ctx, "João Silva")
	require.NoError(t, err)

	fake := resultsPageFake(t)
	nav := authenticatedNavigator(t, fake)

	var stages []string
	report, err := service.RunImport(ctx, nav, []Selection{
		{ClassValue: "1203", SubjectValue: "10", TermIndex: 0},
	}, func(p Progress) {
		stages = append(stages, p.Stage)
	})
	require.NoError(t, err)

	require.NotEmpty(t, report.RunID)
	require.Equal(t, 1, report.RowsExtracted)
	require.Equal(t, 1, report.RowsPersisted)
	require.Empty(t, report.Unresolved)
	require.Empty(t, report.UnmappedClasses)
	require.Contains(t, stages, "persist")

	cells, err := service.Schedule().Cells(ctx, classID)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.Equal(t, "Segunda", cells[0].Day)
	require.Equal(t, "MATEMÁTICA (João)", cells[0].RawText)
	require.Equal(t, disciplineID, cells[0].DisciplineID.Int64)
	require.Equal(t, staffID, cells[0].StaffID.Int64)
}

func TestRunImportReconcilesStudentsFromExport(t *testing.T) {
	schema := strings.Join([]string{
		resolverdb.Schema,
		scheduledb.Schema,
		linkerdb.Schema,
	}, "\n")
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/sync",
		DbSchema: schema,
	})
	t.Cleanup(cleanup)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	t.Cleanup(cancel)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/relatorios/alunos/exportar", r.URL.Path)
		require.Equal(t, "1203", r.URL.Query().Get("turma"))
		fmt.Fprint(w, "Matrícula;Nome\n20240101;Ana Beatriz Souza\n20240102;Zuleica Prado\n")
	}))
	t.Cleanup(server.Close)

	service := NewService(setup.DB, Options{ExportBaseUrl: server.URL})

	anaID, err := service.Linker().AddStudent(ctx, "Ana Beatriz Souza")
	require.NoError(t, err)
	_, err = service.Schedule().AddClass(ctx, "6º Ano A")
	require.NoError(t, err)

	fake := resultsPageFake(t)
	nav := authenticatedNavigator(t, fake)

	report, err := service.RunImport(ctx, nav, []Selection{
		{ClassValue: "1203", SubjectValue: "10", TermIndex: 0},
	}, nil)
	require.NoError(t, err)

	// the exact match was confirmed, the student with no local
	// partner left comes back for review
	require.Len(t, report.NeedsReview, 1)
	require.Equal(t, "Zuleica Prado", report.NeedsReview[0].ExternalName)

	students, err := service.Linker().Students(ctx)
	require.NoError(t, err)
	for _, s := range students {
		if s.ID == anaID {
			require.True(t, s.ExternalID.Valid)
			require.Equal(t, "20240101", s.ExternalID.String)
		}
	}
}

func TestRunImportUnresolvedCellsStillPersist(t *testing.T) {
	service, _, ctx := setupSync(t)

	classID, err := service.Schedule().AddClass(ctx, "6º Ano A")
	require.NoError(t, err)

	fake := resultsPageFake(t)
	nav := authenticatedNavigator(t, fake)

	report, err := service.RunImport(ctx, nav, []Selection{
		{ClassValue: "1203", SubjectValue: "10", TermIndex: 0},
	}, nil)
	require.NoError(t, err)

	require.Equal(t, 1, report.RowsPersisted)
	require.Len(t, report.Unresolved, 1)
	require.Equal(t, "MATEMÁTICA (João)", report.Unresolved[0].RawText)

	cells, err := service.Schedule().Cells(ctx, classID)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	require.False(t, cells[0].DisciplineID.Valid)
	require.False(t, cells[0].StaffID.Valid)
}

func TestRunImportUnmappedClassReported(t *testing.T) {
	service, _, ctx := setupSync(t)

	fake := resultsPageFake(t)
	nav := authenticatedNavigator(t, fake)

	report, err := service.RunImport(ctx, nav, []Selection{
		{ClassValue: "1203", SubjectValue: "10", TermIndex: 0},
	}, nil)
	require.NoError(t, err)

	require.Equal(t, 0, report.RowsPersisted)
	require.Contains(t, report.UnmappedClasses, "1203")
}

func TestRunExtractSkipsDriftedPage(t *testing.T) {
	service, _, ctx := setupSync(t)

	fake := resultsPageFake(t)
	// the results table never renders
	delete(fake.Html, `table#grdAlunos`)
	nav := authenticatedNavigator(t, fake)

	report, err := service.RunExtract(ctx, nav, []Selection{
		{ClassValue: "1203", SubjectValue: "10", TermIndex: 0},
	}, nil)
	require.NoError(t, err)

	require.Equal(t, 0, report.RowsExtracted)
	require.Len(t, report.Pages, 1)
	require.NotEmpty(t, report.Pages[0].Drift)
}

func TestRunExtractEnumeratesAll(t *testing.T) {
	service, _, ctx := setupSync(t)

	fake := resultsPageFake(t)
	nav := authenticatedNavigator(t, fake)

	report, err := service.RunExtract(ctx, nav, nil, nil)
	require.NoError(t, err)

	// one class, one subject, four terms
	require.Len(t, report.Pages, 4)
	require.Equal(t, 4, report.RowsExtracted)
}

func TestReconcileStudents(t *testing.T) {
	service, _, ctx := setupSync(t)

	anaID, err := service.Linker().AddStudent(ctx, "Ana Beatriz Souza")
	require.NoError(t, err)
	pedroID, err := service.Linker().AddStudent(ctx, "Pedro Henrique Cardoso")
	require.NoError(t, err)

	needsReview, err := service.ReconcileStudents(ctx, []diario.StudentRecord{
		{ExternalID: "20240101", Name: "ANA BEATRIZ SOUZA"},
		{ExternalID: "20240103", Name: "Mariana Costa"},
	})
	require.NoError(t, err)

	for _, c := range needsReview {
		require.NotEqual(t, linker.StatusAutoConfirmed, c.Status)
	}

	students, err := service.Linker().Students(ctx)
	require.NoError(t, err)
	for _, s := range students {
		switch s.ID {
		case anaID:
			require.True(t, s.ExternalID.Valid)
			require.Equal(t, "20240101", s.ExternalID.String)
		case pedroID:
			require.False(t, s.ExternalID.Valid)
		}
	}
}

func TestConfirmAliasThenResolve(t *testing.T) {
	service, _, ctx := setupSync(t)

	id, err := service.Resolver().AddDiscipline(ctx, "Educação Física")
	require.NoError(t, err)

	require.NoError(t, service.ConfirmAlias(ctx, "ED. FÍSICA", resolver.KindDiscipline, id))

	res, err := service.Resolver().LoadResolver(ctx)
	require.NoError(t, err)
	resolution := res.Resolve("ED. FÍSICA")
	require.NotNil(t, resolution.DisciplineID)
	require.Equal(t, id, *resolution.DisciplineID)
}
