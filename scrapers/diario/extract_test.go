package diario

import (
	"context"
	"testing"
	"time"

	"schoolsync-backend/lib/browser"
	"schoolsync-backend/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const scheduleTableHtml = `
<table id="grdAlunos">
	<tr><th>Horário</th><th>Segunda</th><th>Terça</th></tr>
	<tr><td>07:10-08:00</td><td>MATEMÁTICA (João)</td><td>CIÊNCIAS</td></tr>
	<tr><td>08:00-08:50</td><td></td><td>RECREIO</td></tr>
</table>`

func authenticatedNavigator(t *testing.T, fake *browser.Fake) *Navigator {
	t.Helper()
	fake.Present[`input[name="txtUsuario"]`] = true
	fake.Present[`input[name="txtSenha"]`] = true
	fake.Present[`button[type="submit"]`] = true
	fake.OnLocation = func(polls int) string {
		return "https://diario.example.edu.br/home.aspx"
	}

	controller := NewSessionController(fake, SessionOptions{
		LoginUrl: loginUrl,
	})
	require.NoError(t, controller.Login(context.Background(), "user", "hunter2"))

	nav, err := NewNavigator(controller, NavigatorOptions{
		PageUrl: "https://diario.example.edu.br/diario.aspx",
	})
	require.NoError(t, err)
	return nav
}

func TestExtractTable(t *testing.T) {
	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name: "scrapers/diario/extract",
	})
	defer cleanup()

	fake := browser.NewFake()
	fake.Html[`table#grdAlunos`] = scheduleTableHtml
	nav := authenticatedNavigator(t, fake)

	grid, err := nav.ExtractTable(context.Background())
	require.NoError(t, err)

	expected := [][]string{
		{"Horário", "Segunda", "Terça"},
		{"07:10-08:00", "MATEMÁTICA (João)", "CIÊNCIAS"},
		{"08:00-08:50", "", "RECREIO"},
	}
	diff := cmp.Diff(expected, grid.Rows)
	if diff != "" {
		t.Fatal(diff)
	}

	require.Equal(t, "CIÊNCIAS", grid.At(1, 2))
	require.Equal(t, "", grid.At(9, 9))
}

func TestExtractTableReportsDrift(t *testing.T) {
	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name: "scrapers/diario/extract",
	})
	defer cleanup()

	fake := browser.NewFake()
	nav := authenticatedNavigator(t, fake)

	_, err := nav.ExtractTable(context.Background())
	var drift *DriftError
	require.ErrorAs(t, err, &drift)
}

func TestShowResultsWaitsForLateTable(t *testing.T) {
	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name: "scrapers/diario/extract",
	})
	defer cleanup()

	fake := browser.NewFake()
	fake.Present[`button[name="btnExibirAlunos"]`] = true
	nav := authenticatedNavigator(t, fake)

	// the server fills the table in a while after the click
	time.AfterFunc(time.Millisecond*100, func() {
		fake.Reveal(`table#grdAlunos`, scheduleTableHtml)
	})

	require.NoError(t, nav.ShowResults(context.Background()))

	grid, err := nav.ExtractTable(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, grid.NumRows())
}

func TestShowResultsTimesOutAsDrift(t *testing.T) {
	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name: "scrapers/diario/extract",
	})
	defer cleanup()

	fake := browser.NewFake()
	fake.Present[`input[name="txtUsuario"]`] = true
	fake.Present[`input[name="txtSenha"]`] = true
	fake.Present[`button[type="submit"]`] = true
	fake.Present[`button[name="btnExibirAlunos"]`] = true
	fake.OnLocation = func(polls int) string {
		return "https://diario.example.edu.br/home.aspx"
	}

	controller := NewSessionController(fake, SessionOptions{
		LoginUrl: loginUrl,
	})
	require.NoError(t, controller.Login(context.Background(), "user", "hunter2"))

	nav, err := NewNavigator(controller, NavigatorOptions{
		PageUrl:        "https://diario.example.edu.br/diario.aspx",
		ResultsTimeout: time.Millisecond * 250,
	})
	require.NoError(t, err)

	start := time.Now()
	err = nav.ShowResults(context.Background())
	var drift *DriftError
	require.ErrorAs(t, err, &drift)
	require.GreaterOrEqual(t, time.Since(start), time.Millisecond*250)
}

func TestParseScheduleGrid(t *testing.T) {
	grid := Grid{Rows: [][]string{
		{"Horário", "Segunda"},
		{"07:10-08:00", "MATEMÁTICA (João)"},
		{"08:00-08:50", ""},
	}}

	cells := ParseScheduleGrid(grid)
	require.Equal(t, []RawCell{
		{Day: "Segunda", TimeSlot: "07:10-08:00", RawText: "MATEMÁTICA (João)"},
	}, cells)
}

func TestParseScheduleGridEmpty(t *testing.T) {
	require.Nil(t, ParseScheduleGrid(Grid{}))
	require.Nil(t, ParseScheduleGrid(Grid{Rows: [][]string{{"Horário", "Segunda"}}}))
}

func TestSelectCascadeOrdering(t *testing.T) {
	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name: "scrapers/diario/navigate",
	})
	defer cleanup()

	fake := browser.NewFake()
	fake.Present[`select[name="cboTurma"]`] = true
	fake.Present[`select[name="cboDisciplina"]`] = true
	fake.Present[`select[name="cboBimestre"]`] = true
	nav := authenticatedNavigator(t, fake)

	// term without subject violates the cascade precondition
	require.Error(t, nav.SelectCascade(context.Background(), "12", "", 0))
	// missing class is never valid
	require.Error(t, nav.SelectCascade(context.Background(), "", "3", 0))

	require.NoError(t, nav.SelectCascade(context.Background(), "12", "3", 0))
	require.Equal(t, []string{
		`select select[name="cboTurma"]=12`,
		`select select[name="cboDisciplina"]=3`,
		`select select[name="cboBimestre"]=1`,
	}, fake.Actions[len(fake.Actions)-3:])
}

func TestSubjectOptionsRequireClassSelection(t *testing.T) {
	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name: "scrapers/diario/navigate",
	})
	defer cleanup()

	fake := browser.NewFake()
	fake.Html[`select[name="cboTurma"]`] = `
		<select name="cboTurma">
			<option value="">Selecione...</option>
			<option value="12">6º ANO A</option>
		</select>`
	nav := authenticatedNavigator(t, fake)

	_, err := nav.SubjectOptions(context.Background())
	require.Error(t, err)

	options, err := nav.ClassOptions(context.Background())
	require.NoError(t, err)
	require.Len(t, options, 1)
	require.Equal(t, "12", options[0].Value)
}
