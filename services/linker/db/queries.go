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

type Student struct {
	ID         int64
	Name       string
	ExternalID sql.NullString
}

func (q *Queries) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, external_id FROM students ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var s Student
		err := rows.Scan(&s.ID, &s.Name, &s.ExternalID)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) ListUnlinkedStudents(ctx context.Context) ([]Student, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, external_id FROM students WHERE external_id IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var s Student
		err := rows.Scan(&s.ID, &s.Name, &s.ExternalID)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) GetStudent(ctx context.Context, id int64) (Student, error) {
	row := q.db.QueryRowContext(ctx, `SELECT id, name, external_id FROM students WHERE id = ?`, id)
	var s Student
	err := row.Scan(&s.ID, &s.Name, &s.ExternalID)
	return s, err
}

func (q *Queries) CreateStudent(ctx context.Context, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO students (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type SetStudentExternalIDParams struct {
	ID         int64
	ExternalID string
}

func (q *Queries) SetStudentExternalID(ctx context.Context, arg SetStudentExternalIDParams) error {
	_, err := q.db.ExecContext(
		ctx,
		`UPDATE students SET external_id = ? WHERE id = ?`,
		arg.ExternalID, arg.ID,
	)
	return err
}
