package diario

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"schoolsync-backend/lib/browser"
)

// The platform's markup has drifted over the years, old deployments
// still serve controls under their historical names. Every control is
// therefore looked up through an ordered list of named strategies, and
// the strategy that matched is logged so operators can tell what the
// page currently looks like.

type field int

const (
	fieldUsername field = iota
	fieldPassword
	fieldLoginSubmit
	fieldClassSelect
	fieldSubjectSelect
	fieldTermSelect
	fieldResultsTrigger
	fieldResultsTable
)

func (f field) String() string {
	switch f {
	case fieldUsername:
		return "username input"
	case fieldPassword:
		return "password input"
	case fieldLoginSubmit:
		return "login submit"
	case fieldClassSelect:
		return "class select"
	case fieldSubjectSelect:
		return "subject select"
	case fieldTermSelect:
		return "term select"
	case fieldResultsTrigger:
		return "results trigger"
	case fieldResultsTable:
		return "results table"
	}
	return "unknown control"
}

type fieldStrategy struct {
	name     string
	selector string
}

var fieldStrategies = map[field][]fieldStrategy{
	fieldUsername: {
		{"current", `input[name="txtUsuario"]`},
		{"legacy", `input[name="login"]`},
		{"id-fallback", `#usuario`},
	},
	fieldPassword: {
		{"current", `input[name="txtSenha"]`},
		{"legacy", `input[name="senha"]`},
		{"id-fallback", `#senha`},
	},
	fieldLoginSubmit: {
		{"current", `button[type="submit"]`},
		{"legacy", `input[name="btnEntrar"]`},
	},
	fieldClassSelect: {
		{"current", `select[name="cboTurma"]`},
		{"legacy", `select[name="cboTurmas"]`},
		{"id-fallback", `#turma`},
	},
	fieldSubjectSelect: {
		{"current", `select[name="cboDisciplina"]`},
		{"legacy", `select[name="cboMateria"]`},
	},
	fieldTermSelect: {
		{"current", `select[name="cboBimestre"]`},
		{"legacy", `select[name="cboPeriodo"]`},
	},
	fieldResultsTrigger: {
		{"current", `button[name="btnExibirAlunos"]`},
		{"legacy", `input[name="btnExibir"]`},
	},
	fieldResultsTable: {
		{"current", `table#grdAlunos`},
		{"legacy", `table[name="grdNotas"]`},
	},
}

// DriftError means an expected page control is absent under every known
// name. It is fatal for the page being extracted but does not corrupt
// anything already extracted.
type DriftError struct {
	Control string
	Tried   []string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf(
		"page control %q not found, tried strategies: %s",
		e.Control, strings.Join(e.Tried, ", "),
	)
}

func resolveField(ctx context.Context, driver browser.Driver, f field) (string, error) {
	strategies := fieldStrategies[f]
	tried := make([]string, 0, len(strategies))

	for _, strategy := range strategies {
		exists, err := driver.Exists(ctx, strategy.selector)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", f, err)
		}
		if exists {
			slog.DebugContext(ctx, "field strategy matched",
				"control", f.String(),
				"strategy", strategy.name,
				"selector", strategy.selector,
			)
			return strategy.selector, nil
		}
		tried = append(tried, strategy.name)
	}

	return "", &DriftError{Control: f.String(), Tried: tried}
}
