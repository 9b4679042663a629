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

type Class struct {
	ID   int64
	Name string
}

type ScheduleCell struct {
	LocalClassID int64
	Day          string
	TimeSlot     string
	RawText      string
	DisciplineID sql.NullInt64
	StaffID      sql.NullInt64
	UpdatedAt    int64
}

func (q *Queries) ListClasses(ctx context.Context) ([]Class, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name FROM classes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Class
	for rows.Next() {
		var c Class
		err := rows.Scan(&c.ID, &c.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) CreateClass(ctx context.Context, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO classes (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type CreateClassMappingParams struct {
	ExternalClassID string
	LocalClassID    int64
}

func (q *Queries) CreateClassMapping(ctx context.Context, arg CreateClassMappingParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO class_mapping (external_class_id, local_class_id)
		VALUES (?, ?)
		ON CONFLICT (external_class_id) DO UPDATE SET local_class_id = excluded.local_class_id`,
		arg.ExternalClassID, arg.LocalClassID,
	)
	return err
}

func (q *Queries) GetClassMapping(ctx context.Context, externalClassID string) (int64, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT local_class_id FROM class_mapping WHERE external_class_id = ?`,
		externalClassID,
	)
	var localID int64
	err := row.Scan(&localID)
	return localID, err
}

type UpsertScheduleCellParams struct {
	LocalClassID int64
	Day          string
	TimeSlot     string
	RawText      string
	DisciplineID sql.NullInt64
	StaffID      sql.NullInt64
	UpdatedAt    int64
}

func (q *Queries) UpsertScheduleCell(ctx context.Context, arg UpsertScheduleCellParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO schedule_cell
			(local_class_id, day, time_slot, raw_text, discipline_id, staff_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (local_class_id, day, time_slot) DO UPDATE SET
			raw_text = excluded.raw_text,
			discipline_id = excluded.discipline_id,
			staff_id = excluded.staff_id,
			updated_at = excluded.updated_at`,
		arg.LocalClassID, arg.Day, arg.TimeSlot, arg.RawText,
		arg.DisciplineID, arg.StaffID, arg.UpdatedAt,
	)
	return err
}

func (q *Queries) GetScheduleCells(ctx context.Context, localClassID int64) ([]ScheduleCell, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT local_class_id, day, time_slot, raw_text, discipline_id, staff_id, updated_at
		FROM schedule_cell
		WHERE local_class_id = ?
		ORDER BY day, time_slot`,
		localClassID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduleCell
	for rows.Next() {
		var c ScheduleCell
		err := rows.Scan(
			&c.LocalClassID, &c.Day, &c.TimeSlot, &c.RawText,
			&c.DisciplineID, &c.StaffID, &c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
