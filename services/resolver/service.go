package resolver

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	"schoolsync-backend/lib/textutil"
	"schoolsync-backend/lib/timezone"
	"schoolsync-backend/services/resolver/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("schoolsync.services.resolver")

type EntityKind string

const (
	KindDiscipline EntityKind = "discipline"
	KindStaff      EntityKind = "staff"
)

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

// LoadResolver snapshots the entity lists and the alias table into a
// per-run Resolver. The snapshot never sees writes made after it was
// taken, alias confirmations happen in a separate serialized step.
func (s Service) LoadResolver(ctx context.Context) (*Resolver, error) {
	ctx, span := tracer.Start(ctx, "LoadResolver")
	defer span.End()

	disciplines, err := s.qry.ListDisciplines(ctx)
	if err != nil {
		return nil, err
	}
	staff, err := s.qry.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	aliases, err := s.qry.ListAliases(ctx)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("disciplines", len(disciplines)),
		attribute.Int("staff", len(staff)),
		attribute.Int("aliases", len(aliases)),
	)
	return NewResolver(disciplines, staff, aliases), nil
}

// ConfirmAlias records an operator-confirmed override for a raw text
// that the resolver could not place. This is the only way the alias
// table grows.
func (s Service) ConfirmAlias(ctx context.Context, rawText string, kind EntityKind, entityID int64) error {
	ctx, span := tracer.Start(ctx, "ConfirmAlias")
	defer span.End()
	span.SetAttributes(
		attribute.String("kind", string(kind)),
		attribute.Int64("entity_id", entityID),
	)

	return s.qry.CreateAlias(ctx, db.CreateAliasParams{
		CanonicalKey: textutil.Canonicalize(rawText),
		EntityKind:   string(kind),
		EntityID:     entityID,
		CreatedAt:    timezone.Now().Unix(),
	})
}

func (s Service) Aliases(ctx context.Context) ([]db.Alias, error) {
	return s.qry.ListAliases(ctx)
}

func (s Service) RemoveAlias(ctx context.Context, rawText string, kind EntityKind) error {
	return s.qry.DeleteAlias(ctx, db.DeleteAliasParams{
		CanonicalKey: textutil.Canonicalize(rawText),
		EntityKind:   string(kind),
	})
}

func (s Service) AddDiscipline(ctx context.Context, name string) (int64, error) {
	return s.qry.CreateDiscipline(ctx, name)
}

func (s Service) AddStaff(ctx context.Context, name string) (int64, error) {
	return s.qry.CreateStaff(ctx, name)
}

// Resolution holds the outcome of resolving one raw cell text. Nil ids
// mean "unresolved", which is data for manual review, not an error.
type Resolution struct {
	DisciplineID *int64
	StaffID      *int64
}

func (r Resolution) Unresolved() bool {
	return r.DisciplineID == nil && r.StaffID == nil
}

type aliasKey struct {
	canonical string
	kind      EntityKind
}

// Resolver maps raw cell text to local entity ids. It is an explicit
// per-run cache with no state shared across runs.
type Resolver struct {
	staff []db.Staff

	disciplineByKey map[string]int64
	staffByKey      map[string]int64
	aliases         map[aliasKey]int64
}

func NewResolver(disciplines []db.Discipline, staff []db.Staff, aliases []db.Alias) *Resolver {
	r := &Resolver{
		staff:           staff,
		disciplineByKey: make(map[string]int64, len(disciplines)),
		staffByKey:      make(map[string]int64, len(staff)),
		aliases:         make(map[aliasKey]int64, len(aliases)),
	}
	for _, d := range disciplines {
		r.disciplineByKey[textutil.Canonicalize(d.Name)] = d.ID
	}
	for _, s := range staff {
		r.staffByKey[textutil.Canonicalize(s.Name)] = s.ID
	}
	for _, a := range aliases {
		r.aliases[aliasKey{a.CanonicalKey, EntityKind(a.EntityKind)}] = a.EntityID
	}
	return r
}

// matches cell texts of the form "<DISCIPLINE> (<PERSON>)"
var disciplinePersonRegex = regexp.MustCompile(`^(.+?)\s*\((.+)\)\s*$`)

// Resolve never fails, text that matches nothing (break/recess rows,
// free-form remarks) simply comes back with both ids nil.
func (r *Resolver) Resolve(rawText string) Resolution {
	disciplinePart := rawText
	personPart := ""
	if m := disciplinePersonRegex.FindStringSubmatch(rawText); m != nil {
		disciplinePart = m[1]
		personPart = m[2]
	}

	var res Resolution
	if id, ok := r.resolveDiscipline(disciplinePart); ok {
		res.DisciplineID = &id
	}

	staffAliasText := personPart
	if personPart == "" {
		staffAliasText = rawText
	}
	if id, ok := r.resolveStaff(personPart, staffAliasText); ok {
		res.StaffID = &id
	}
	return res
}

func (r *Resolver) resolveDiscipline(part string) (int64, bool) {
	key := textutil.Canonicalize(part)
	if key == "" {
		return 0, false
	}
	// exact match is case/diacritic-insensitive by construction
	if id, ok := r.disciplineByKey[key]; ok {
		return id, true
	}
	id, ok := r.aliases[aliasKey{key, KindDiscipline}]
	return id, ok
}

func (r *Resolver) resolveStaff(personPart, aliasText string) (int64, bool) {
	if personPart != "" {
		for _, s := range r.staff {
			if strings.EqualFold(s.Name, personPart) {
				return s.ID, true
			}
		}
		// first-name disambiguation: the page usually prints just the
		// first name, take the first staff member (in supplied order)
		// whose full name starts with it
		lowered := strings.ToLower(personPart)
		for _, s := range r.staff {
			if strings.HasPrefix(strings.ToLower(s.Name), lowered) {
				return s.ID, true
			}
		}
	}

	key := textutil.Canonicalize(aliasText)
	if key == "" {
		return 0, false
	}
	id, ok := r.aliases[aliasKey{key, KindStaff}]
	return id, ok
}
