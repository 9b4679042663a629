package schedule

import (
	"context"
	"database/sql"
	"fmt"

	"schoolsync-backend/lib/textutil"
	"schoolsync-backend/lib/timezone"
	"schoolsync-backend/services/schedule/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("schoolsync.services.schedule")

type Service struct {
	db  *sql.DB
	qry *db.Queries
}

func NewService(database *sql.DB) Service {
	return Service{
		db:  database,
		qry: db.New(database),
	}
}

// Cell is one reconciled timetable cell ready for persistence. RawText
// always carries what the page said, the ids stay nil when the
// resolver couldn't place them.
type Cell struct {
	ExternalClassID string
	LocalClassID    int64
	Day             string
	TimeSlot        string
	RawText         string
	DisciplineID    *int64
	StaffID         *int64
}

// ValidationError identifies the first offending row of a batch, no
// write is attempted once one is found.
type ValidationError struct {
	Index  int
	Reason string
	Cell   Cell
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(
		"invalid schedule cell at index %d (%s): class=%d day=%q slot=%q text=%q",
		e.Index, e.Reason,
		e.Cell.LocalClassID, e.Cell.Day, e.Cell.TimeSlot, e.Cell.RawText,
	)
}

func validateCells(cells []Cell) error {
	if len(cells) == 0 {
		return fmt.Errorf("refusing to upsert an empty batch")
	}
	for i, c := range cells {
		switch {
		case c.LocalClassID == 0:
			return &ValidationError{Index: i, Reason: "missing local class id", Cell: c}
		case c.Day == "":
			return &ValidationError{Index: i, Reason: "missing day", Cell: c}
		case c.TimeSlot == "":
			return &ValidationError{Index: i, Reason: "missing time slot", Cell: c}
		case c.RawText == "":
			return &ValidationError{Index: i, Reason: "missing raw text", Cell: c}
		}
	}
	return nil
}

// UpsertCells writes the batch inside one transaction keyed by
// (local_class_id, day, time_slot). All rows land or none do, a single
// failing row rolls the whole batch back with the row in the error.
func (s Service) UpsertCells(ctx context.Context, cells []Cell) (int, error) {
	ctx, span := tracer.Start(ctx, "UpsertCells")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", len(cells)))

	err := validateCells(cells)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin transaction")
		return 0, err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	now := timezone.Now().Unix()
	for i, c := range cells {
		err := txqry.UpsertScheduleCell(ctx, db.UpsertScheduleCellParams{
			LocalClassID: c.LocalClassID,
			Day:          c.Day,
			TimeSlot:     c.TimeSlot,
			RawText:      c.RawText,
			DisciplineID: nullable(c.DisciplineID),
			StaffID:      nullable(c.StaffID),
			UpdatedAt:    now,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "row write failed")
			return 0, fmt.Errorf(
				"write cell %d (class=%d day=%q slot=%q): %w",
				i, c.LocalClassID, c.Day, c.TimeSlot, err,
			)
		}
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return 0, err
	}
	return len(cells), nil
}

func nullable(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func (s Service) Cells(ctx context.Context, localClassID int64) ([]db.ScheduleCell, error) {
	return s.qry.GetScheduleCells(ctx, localClassID)
}

func (s Service) AddClass(ctx context.Context, name string) (int64, error) {
	return s.qry.CreateClass(ctx, name)
}

// ExternalClass is a class section as the platform lists it.
type ExternalClass struct {
	ID   string
	Name string
}

// MappingReport says what happened to each external class id during
// mapping. Ambiguous matches are reported and never applied, an
// operator picks the right one.
type MappingReport struct {
	// external id -> local id, includes previously mapped ids
	Applied map[string]int64
	// external id -> the several local candidates it matched
	Ambiguous map[string][]int64
	// external ids that matched nothing
	Unmatched []string
}

// MapClasses reconciles external class sections against the local
// class list by canonical name. Exactly one local match is applied
// automatically, anything else goes into the report.
func (s Service) MapClasses(ctx context.Context, external []ExternalClass) (MappingReport, error) {
	ctx, span := tracer.Start(ctx, "MapClasses")
	defer span.End()

	report := MappingReport{
		Applied:   map[string]int64{},
		Ambiguous: map[string][]int64{},
	}

	local, err := s.qry.ListClasses(ctx)
	if err != nil {
		return report, err
	}
	byKey := map[string][]int64{}
	for _, c := range local {
		key := textutil.Canonicalize(c.Name)
		byKey[key] = append(byKey[key], c.ID)
	}

	for _, e := range external {
		localID, err := s.qry.GetClassMapping(ctx, e.ID)
		if err == nil {
			report.Applied[e.ID] = localID
			continue
		}
		if err != sql.ErrNoRows {
			return report, err
		}

		candidates := byKey[textutil.Canonicalize(e.Name)]
		switch len(candidates) {
		case 0:
			report.Unmatched = append(report.Unmatched, e.ID)
		case 1:
			err := s.qry.CreateClassMapping(ctx, db.CreateClassMappingParams{
				ExternalClassID: e.ID,
				LocalClassID:    candidates[0],
			})
			if err != nil {
				return report, err
			}
			report.Applied[e.ID] = candidates[0]
		default:
			report.Ambiguous[e.ID] = candidates
		}
	}

	span.SetAttributes(
		attribute.Int("applied", len(report.Applied)),
		attribute.Int("ambiguous", len(report.Ambiguous)),
		attribute.Int("unmatched", len(report.Unmatched)),
	)
	return report, nil
}

// ClassMapping returns the local class id mapped to an external class
// id, sql.ErrNoRows when no mapping exists yet.
func (s Service) ClassMapping(ctx context.Context, externalClassID string) (int64, error) {
	return s.qry.GetClassMapping(ctx, externalClassID)
}

// ConfirmClassMapping records an operator's pick for an ambiguous or
// unmatched external class id.
func (s Service) ConfirmClassMapping(ctx context.Context, externalClassID string, localClassID int64) error {
	return s.qry.CreateClassMapping(ctx, db.CreateClassMappingParams{
		ExternalClassID: externalClassID,
		LocalClassID:    localClassID,
	})
}
