package repository

import (
	"context"

	"earapi/internal/model"
)

// QueryLogRepository persists the record of served data queries.
// No business logic here, strictly persistence operations.
type QueryLogRepository interface {
	// Create inserts a new entry and returns the stored row.
	Create(ctx context.Context, entry *model.QueryLog) (*model.QueryLog, error)

	// FindByID returns an entry by its ID.
	FindByID(ctx context.Context, id string) (*model.QueryLog, error)

	// List returns entries newest first and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.QueryLog], error)
}
