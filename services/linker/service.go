package linker

import (
	"context"
	"database/sql"

	"schoolsync-backend/services/linker/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("schoolsync.services.linker")

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

func (s Service) Students(ctx context.Context) ([]db.Student, error) {
	return s.qry.ListStudents(ctx)
}

func (s Service) AddStudent(ctx context.Context, name string) (int64, error) {
	return s.qry.CreateStudent(ctx, name)
}

// ReconcileStudents matches the platform's student list against local
// students that don't carry a platform identity yet. Nothing is
// written, the caller decides which candidates to confirm.
func (s Service) ReconcileStudents(ctx context.Context, external []ExternalStudent, threshold float64) ([]ReconciliationCandidate, error) {
	ctx, span := tracer.Start(ctx, "ReconcileStudents")
	defer span.End()
	span.SetAttributes(
		attribute.Int("external", len(external)),
		attribute.Float64("threshold", threshold),
	)

	unlinked, err := s.qry.ListUnlinkedStudents(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list unlinked students")
		return nil, err
	}

	local := make([]Candidate, len(unlinked))
	for i, st := range unlinked {
		local[i] = Candidate{ID: st.ID, Name: st.Name}
	}

	candidates := reconcile(external, local, threshold)
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	return candidates, nil
}

// ConfirmCandidate writes the accepted platform identity onto the
// local student row.
func (s Service) ConfirmCandidate(ctx context.Context, localID int64, externalID string) error {
	ctx, span := tracer.Start(ctx, "ConfirmCandidate")
	defer span.End()

	err := s.qry.SetStudentExternalID(ctx, db.SetStudentExternalIDParams{
		ID:         localID,
		ExternalID: externalID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write external id")
		return err
	}
	return nil
}
