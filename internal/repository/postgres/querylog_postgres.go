package postgres

import (
	"context"
	"database/sql"

	"earapi/internal/model"
	"earapi/internal/repository"
)

// QueryLogPostgres is a PostgreSQL implementation of repository.QueryLogRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type QueryLogPostgres struct {
	db *sql.DB
}

// NewQueryLogPostgres creates a new QueryLogPostgres repository.
func NewQueryLogPostgres(db *sql.DB) *QueryLogPostgres {
	return &QueryLogPostgres{db: db}
}

var _ repository.QueryLogRepository = (*QueryLogPostgres)(nil)

const queryLogColumns = `id, request_id, package_id, ano, mes, nome_reservatorio, page, page_size,
		resource_url, rows_returned, rows_scanned, has_more, status, duration_ms, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanQueryLog(s scanner) (*model.QueryLog, error) {
	var (
		out   model.QueryLog
		month sql.NullInt32
		name  sql.NullString
	)
	if err := s.Scan(
		&out.ID,
		&out.RequestID,
		&out.DatasetID,
		&out.Year,
		&month,
		&name,
		&out.Page,
		&out.PageSize,
		&out.ResourceURL,
		&out.Rows,
		&out.RowsScanned,
		&out.HasMore,
		&out.Status,
		&out.DurationMs,
		&out.CreatedAt,
	); err != nil {
		return nil, err
	}
	if month.Valid {
		m := int(month.Int32)
		out.Month = &m
	}
	if name.Valid {
		n := name.String
		out.NameFilter = &n
	}
	return &out, nil
}

// Create inserts a query log row and returns the stored record.
func (r *QueryLogPostgres) Create(ctx context.Context, entry *model.QueryLog) (*model.QueryLog, error) {
	const q = `
		INSERT INTO query_logs (` + queryLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + queryLogColumns

	var month sql.NullInt32
	if entry.Month != nil {
		month = sql.NullInt32{Int32: int32(*entry.Month), Valid: true}
	}
	var name sql.NullString
	if entry.NameFilter != nil {
		name = sql.NullString{String: *entry.NameFilter, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, q,
		entry.ID,
		entry.RequestID,
		entry.DatasetID,
		entry.Year,
		month,
		name,
		entry.Page,
		entry.PageSize,
		entry.ResourceURL,
		entry.Rows,
		entry.RowsScanned,
		entry.HasMore,
		entry.Status,
		entry.DurationMs,
		entry.CreatedAt,
	)
	return scanQueryLog(row)
}

// FindByID fetches a single entry by its ID.
func (r *QueryLogPostgres) FindByID(ctx context.Context, id string) (*model.QueryLog, error) {
	const q = `SELECT ` + queryLogColumns + ` FROM query_logs WHERE id = $1`
	return scanQueryLog(r.db.QueryRowContext(ctx, q, id))
}

// List returns entries using LIMIT/OFFSET pagination and a total count.
func (r *QueryLogPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.QueryLog], error) {
	const qCount = `SELECT COUNT(*) FROM query_logs`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `SELECT ` + queryLogColumns + `
		FROM query_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.QueryLog, 0)
	for rows.Next() {
		entry, err := scanQueryLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.QueryLog]{
		Items: items,
		Total: total,
	}, nil
}
