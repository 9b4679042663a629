package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Discipline struct {
	ID   int64
	Name string
}

type Staff struct {
	ID   int64
	Name string
}

type Alias struct {
	CanonicalKey string
	EntityKind   string
	EntityID     int64
	CreatedAt    int64
}

func (q *Queries) ListDisciplines(ctx context.Context) ([]Discipline, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name FROM disciplines ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Discipline
	for rows.Next() {
		var d Discipline
		err := rows.Scan(&d.ID, &d.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *Queries) ListStaff(ctx context.Context) ([]Staff, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name FROM staff ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Staff
	for rows.Next() {
		var s Staff
		err := rows.Scan(&s.ID, &s.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) ListAliases(ctx context.Context) ([]Alias, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT canonical_key, entity_kind, entity_id, created_at
		FROM alias ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alias
	for rows.Next() {
		var a Alias
		err := rows.Scan(&a.CanonicalKey, &a.EntityKind, &a.EntityID, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type CreateAliasParams struct {
	CanonicalKey string
	EntityKind   string
	EntityID     int64
	CreatedAt    int64
}

func (q *Queries) CreateAlias(ctx context.Context, arg CreateAliasParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO alias (canonical_key, entity_kind, entity_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (canonical_key, entity_kind)
		DO UPDATE SET entity_id = excluded.entity_id`,
		arg.CanonicalKey, arg.EntityKind, arg.EntityID, arg.CreatedAt,
	)
	return err
}

type DeleteAliasParams struct {
	CanonicalKey string
	EntityKind   string
}

func (q *Queries) DeleteAlias(ctx context.Context, arg DeleteAliasParams) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM alias WHERE canonical_key = ? AND entity_kind = ?`,
		arg.CanonicalKey, arg.EntityKind,
	)
	return err
}

func (q *Queries) CreateDiscipline(ctx context.Context, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO disciplines (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) CreateStaff(ctx context.Context, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO staff (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
