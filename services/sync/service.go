package sync

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"schoolsync-backend/lib/timezone"
	"schoolsync-backend/scrapers/diario"
	"schoolsync-backend/services/linker"
	"schoolsync-backend/services/resolver"
	"schoolsync-backend/services/schedule"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("schoolsync.services.sync")

type Options struct {
	// similarity above which student candidates are confirmed
	// without review, linker.DefaultThreshold when unset
	Threshold float64
	// optional, import runs also download the student list of each
	// extracted class and reconcile it when set
	ExportBaseUrl string
	// optional, a run digest is emailed when configured
	Smtp SmtpConfig
}

type Service struct {
	resolver resolver.Service
	schedule schedule.Service
	linker   linker.Service
	options  Options
}

func NewService(database *sql.DB, options Options) Service {
	if options.Threshold == 0 {
		options.Threshold = linker.DefaultThreshold
	}
	return Service{
		resolver: resolver.NewService(database),
		schedule: schedule.NewService(database),
		linker:   linker.NewService(database),
		options:  options,
	}
}

func (s Service) Resolver() resolver.Service { return s.resolver }
func (s Service) Schedule() schedule.Service { return s.schedule }
func (s Service) Linker() linker.Service     { return s.linker }

// Selection targets one page of the cascade. Subject may be empty and
// TermIndex negative to take the page's defaults.
type Selection struct {
	ClassValue   string
	SubjectValue string
	TermIndex    int
}

type Progress struct {
	Stage   string
	Message string
}

// ProgressFunc is a one-way callback, implementations must not block.
type ProgressFunc func(Progress)

func (f ProgressFunc) emit(stage, message string) {
	slog.Info("sync progress", "stage", stage, "message", message)
	if f != nil {
		f(Progress{Stage: stage, Message: message})
	}
}

// PageReport records what happened on one page of the cascade. A
// drifted page keeps Drift set and contributes no rows, the rest of
// the run carries on.
type PageReport struct {
	Class   string
	Subject string
	Term    int
	Rows    int
	Drift   string
}

type UnresolvedItem struct {
	ExternalClassID string
	Day             string
	TimeSlot        string
	RawText         string
}

type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Pages         []PageReport
	RowsExtracted int
	RowsPersisted int

	// cells persisted without a discipline or staff id
	Unresolved []UnresolvedItem
	// external class ids that matched several or no local classes
	UnmappedClasses []string
	// student candidates below the confirmation threshold
	NeedsReview []linker.ReconciliationCandidate
}

func newRunID() string {
	id, err := random.String(8)
	if err != nil {
		// crypto/rand failing means the process is in much worse
		// trouble than a missing run id
		return "unknown"
	}
	return id
}

type extractedPage struct {
	selection Selection
	cells     []diario.RawCell
}

// expandSelections turns an empty selection list into every
// class/subject/term combination the page offers. Terms run 0..3, the
// platform's four bimestres.
func (s Service) expandSelections(ctx context.Context, nav *diario.Navigator) ([]Selection, error) {
	classes, err := nav.ClassOptions(ctx)
	if err != nil {
		return nil, err
	}

	var out []Selection
	for _, class := range classes {
		err := nav.SelectCascade(ctx, class.Value, "", -1)
		if err != nil {
			return nil, err
		}
		subjects, err := nav.SubjectOptions(ctx)
		if err != nil {
			return nil, err
		}
		for _, subject := range subjects {
			for term := 0; term < 4; term++ {
				out = append(out, Selection{
					ClassValue:   class.Value,
					SubjectValue: subject.Value,
					TermIndex:    term,
				})
			}
		}
	}
	return out, nil
}

func (s Service) extract(ctx context.Context, nav *diario.Navigator, selections []Selection, progress ProgressFunc, report *RunReport) ([]extractedPage, error) {
	err := nav.Open(ctx)
	if err != nil {
		return nil, err
	}

	if len(selections) == 0 {
		progress.emit("extract", "enumerating class sections")
		selections, err = s.expandSelections(ctx, nav)
		if err != nil {
			return nil, err
		}
	}

	var pages []extractedPage
	for _, sel := range selections {
		page := PageReport{
			Class:   sel.ClassValue,
			Subject: sel.SubjectValue,
			Term:    sel.TermIndex,
		}

		cells, err := s.extractPage(ctx, nav, sel)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// structural drift is fatal for this page only
			page.Drift = err.Error()
			report.Pages = append(report.Pages, page)
			slog.Warn("skipping drifted page",
				"class", sel.ClassValue,
				"subject", sel.SubjectValue,
				"term", sel.TermIndex,
				"err", err,
			)
			continue
		}

		page.Rows = len(cells)
		report.Pages = append(report.Pages, page)
		report.RowsExtracted += len(cells)
		pages = append(pages, extractedPage{selection: sel, cells: cells})
		progress.emit("extract", "extracted class "+sel.ClassValue)
	}
	return pages, nil
}

func (s Service) extractPage(ctx context.Context, nav *diario.Navigator, sel Selection) ([]diario.RawCell, error) {
	err := nav.SelectCascade(ctx, sel.ClassValue, sel.SubjectValue, sel.TermIndex)
	if err != nil {
		return nil, err
	}
	err = nav.ShowResults(ctx)
	if err != nil {
		return nil, err
	}
	grid, err := nav.ExtractTable(ctx)
	if err != nil {
		return nil, err
	}
	return diario.ParseScheduleGrid(grid), nil
}

// RunExtract walks the selected pages (or all of them) and reports
// what each one yielded without touching the store.
func (s Service) RunExtract(ctx context.Context, nav *diario.Navigator, selections []Selection, progress ProgressFunc) (RunReport, error) {
	ctx, span := tracer.Start(ctx, "RunExtract")
	defer span.End()

	report := RunReport{RunID: newRunID(), StartedAt: timezone.Now()}
	span.SetAttributes(attribute.String("run_id", report.RunID))

	_, err := s.extract(ctx, nav, selections, progress, &report)
	report.FinishedAt = timezone.Now()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extract failed")
		return report, err
	}
	return report, nil
}

// RunImport extracts the selected pages, resolves every cell against
// the local catalog and upserts the result. Cells the resolver can't
// place are persisted with their raw text and nil ids and listed for
// review, never dropped.
func (s Service) RunImport(ctx context.Context, nav *diario.Navigator, selections []Selection, progress ProgressFunc) (RunReport, error) {
	ctx, span := tracer.Start(ctx, "RunImport")
	defer span.End()

	report := RunReport{RunID: newRunID(), StartedAt: timezone.Now()}
	span.SetAttributes(attribute.String("run_id", report.RunID))

	fail := func(stage string, err error) (RunReport, error) {
		report.FinishedAt = timezone.Now()
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		return report, err
	}

	err := nav.Open(ctx)
	if err != nil {
		return fail("failed to open results page", err)
	}

	// refresh class mappings off the live class list, a drifted class
	// select isn't fatal here while stored mappings still apply
	classes, err := nav.ClassOptions(ctx)
	if err != nil {
		slog.Warn("could not list class sections for mapping", "err", err)
	} else {
		var external []schedule.ExternalClass
		for _, c := range classes {
			external = append(external, schedule.ExternalClass{ID: c.Value, Name: c.Label})
		}
		progress.emit("map", "mapping class sections")
		mapping, err := s.schedule.MapClasses(ctx, external)
		if err != nil {
			return fail("class mapping failed", err)
		}
		for id := range mapping.Ambiguous {
			report.UnmappedClasses = append(report.UnmappedClasses, id)
		}
		report.UnmappedClasses = append(report.UnmappedClasses, mapping.Unmatched...)
	}

	pages, err := s.extract(ctx, nav, selections, progress, &report)
	if err != nil {
		return fail("extract failed", err)
	}

	res, err := s.resolver.LoadResolver(ctx)
	if err != nil {
		return fail("failed to load resolver", err)
	}

	var rows []schedule.Cell
	for _, page := range pages {
		localID, err := s.schedule.ClassMapping(ctx, page.selection.ClassValue)
		if err != nil {
			if err != sql.ErrNoRows {
				return fail("class mapping lookup failed", err)
			}
			report.UnmappedClasses = appendUnique(report.UnmappedClasses, page.selection.ClassValue)
			continue
		}

		for _, cell := range page.cells {
			resolution := res.Resolve(cell.RawText)
			if resolution.Unresolved() {
				report.Unresolved = append(report.Unresolved, UnresolvedItem{
					ExternalClassID: page.selection.ClassValue,
					Day:             cell.Day,
					TimeSlot:        cell.TimeSlot,
					RawText:         cell.RawText,
				})
			}
			rows = append(rows, schedule.Cell{
				ExternalClassID: page.selection.ClassValue,
				LocalClassID:    localID,
				Day:             cell.Day,
				TimeSlot:        cell.TimeSlot,
				RawText:         cell.RawText,
				DisciplineID:    resolution.DisciplineID,
				StaffID:         resolution.StaffID,
			})
		}
	}

	if len(rows) > 0 {
		progress.emit("persist", "writing schedule cells")
		n, err := s.schedule.UpsertCells(ctx, rows)
		if err != nil {
			return fail("persistence failed", err)
		}
		report.RowsPersisted = n
	}

	if s.options.ExportBaseUrl != "" {
		s.reconcileFromExport(ctx, nav, pages, progress, &report)
	}

	report.FinishedAt = timezone.Now()
	span.SetAttributes(
		attribute.Int("rows_extracted", report.RowsExtracted),
		attribute.Int("rows_persisted", report.RowsPersisted),
		attribute.Int("unresolved", len(report.Unresolved)),
		attribute.Int("needs_review", len(report.NeedsReview)),
	)

	err = s.sendDigest(report)
	if err != nil {
		// the import itself succeeded, a failed digest only gets logged
		slog.Warn("failed to send run digest", "run_id", report.RunID, "err", err)
	}
	return report, nil
}

// reconcileFromExport downloads the student list of every class the
// run touched and reconciles it, collecting candidates needing review
// into the report. Failures here never fail the import, the schedule
// data is already committed.
func (s Service) reconcileFromExport(ctx context.Context, nav *diario.Navigator, pages []extractedPage, progress ProgressFunc, report *RunReport) {
	export, err := diario.NewExportClient(ctx, nav.Driver(), s.options.ExportBaseUrl)
	if err != nil {
		slog.Warn("could not build export client", "err", err)
		return
	}
	progress.emit("reconcile", "reconciling student lists")

	seen := map[string]struct{}{}
	for _, page := range pages {
		classValue := page.selection.ClassValue
		if _, ok := seen[classValue]; ok {
			continue
		}
		seen[classValue] = struct{}{}

		data, err := export.DownloadStudentList(ctx, classValue)
		if err != nil {
			slog.Warn("student list download failed", "class", classValue, "err", err)
			continue
		}
		records, err := diario.ParseStudentCsv(data)
		if err != nil {
			slog.Warn("student list unreadable", "class", classValue, "err", err)
			continue
		}
		needsReview, err := s.ReconcileStudents(ctx, records)
		if err != nil {
			slog.Warn("student reconciliation failed", "class", classValue, "err", err)
			continue
		}
		report.NeedsReview = append(report.NeedsReview, needsReview...)
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// ReconcileStudents matches the platform's student list against local
// students. Candidates at or above the threshold are written back
// immediately, the rest come back for review.
func (s Service) ReconcileStudents(ctx context.Context, records []diario.StudentRecord) ([]linker.ReconciliationCandidate, error) {
	ctx, span := tracer.Start(ctx, "ReconcileStudents")
	defer span.End()

	external := make([]linker.ExternalStudent, len(records))
	for i, r := range records {
		external[i] = linker.ExternalStudent{ID: r.ExternalID, Name: r.Name}
	}

	candidates, err := s.linker.ReconcileStudents(ctx, external, s.options.Threshold)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconciliation failed")
		return nil, err
	}

	var needsReview []linker.ReconciliationCandidate
	for _, c := range candidates {
		if c.Status != linker.StatusAutoConfirmed {
			needsReview = append(needsReview, c)
			continue
		}
		err := s.linker.ConfirmCandidate(ctx, c.LocalID, c.ExternalID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to confirm candidate")
			return nil, err
		}
	}
	return needsReview, nil
}

// ConfirmAlias records an operator decision for a raw text the
// resolver couldn't place. Serialized with resolution passes by the
// caller, a loaded Resolver snapshot never sees it.
func (s Service) ConfirmAlias(ctx context.Context, rawText string, kind resolver.EntityKind, entityID int64) error {
	return s.resolver.ConfirmAlias(ctx, rawText, kind, entityID)
}

// ConfirmCandidate accepts a reviewed student candidate.
func (s Service) ConfirmCandidate(ctx context.Context, localID int64, externalID string) error {
	return s.linker.ConfirmCandidate(ctx, localID, externalID)
}
