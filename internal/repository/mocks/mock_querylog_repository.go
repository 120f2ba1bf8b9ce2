package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"earapi/internal/model"
	"earapi/internal/repository"
)

type MockQueryLogRepository struct {
	mock.Mock
}

func (m *MockQueryLogRepository) Create(ctx context.Context, entry *model.QueryLog) (*model.QueryLog, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueryLog), args.Error(1)
}

func (m *MockQueryLogRepository) FindByID(ctx context.Context, id string) (*model.QueryLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueryLog), args.Error(1)
}

func (m *MockQueryLogRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.QueryLog], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.QueryLog]), args.Error(1)
}
