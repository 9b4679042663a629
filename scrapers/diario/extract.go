package diario

import (
	"context"
	"strings"

	"schoolsync-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Grid is the zero-indexed matrix of cleaned cell text extracted from
// the rendered results table.
type Grid struct {
	Rows [][]string
}

func (g Grid) NumRows() int {
	return len(g.Rows)
}

func (g Grid) At(row, col int) string {
	if row < 0 || row >= len(g.Rows) {
		return ""
	}
	r := g.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// ExtractTable parses the rendered results table into a Grid.
// ShowResults must have completed first.
func (n *Navigator) ExtractTable(ctx context.Context) (Grid, error) {
	ctx, span := tracer.Start(ctx, "navigator:ExtractTable")
	defer span.End()

	selector, err := resolveField(ctx, n.driver, fieldResultsTable)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "results table not found")
		return Grid{}, err
	}

	html, err := n.driver.OuterHTML(ctx, selector)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read results table")
		return Grid{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse results table")
		return Grid{}, err
	}

	grid := Grid{Rows: htmlutil.GetTableGrid(ctx, doc.Selection)}
	span.SetAttributes(attribute.Int("rows", grid.NumRows()))
	return grid, nil
}

// RawCell is one populated timetable cell as it came off the page,
// before any entity resolution.
type RawCell struct {
	Day      string
	TimeSlot string
	RawText  string
}

// ParseScheduleGrid reads a timetable grid whose first row holds day
// names (column zero being the time-slot header) and whose remaining
// rows hold one time slot each. Empty cells are skipped, they are
// breaks or unused slots, not data.
func ParseScheduleGrid(grid Grid) []RawCell {
	if grid.NumRows() < 2 {
		return nil
	}

	header := grid.Rows[0]
	var cells []RawCell
	for _, row := range grid.Rows[1:] {
		if len(row) == 0 {
			continue
		}
		timeSlot := row[0]
		if timeSlot == "" {
			continue
		}
		for col := 1; col < len(row) && col < len(header); col++ {
			text := row[col]
			if text == "" {
				continue
			}
			cells = append(cells, RawCell{
				Day:      header[col],
				TimeSlot: timeSlot,
				RawText:  text,
			})
		}
	}
	return cells
}
