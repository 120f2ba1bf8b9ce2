package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"earapi/internal/model"
	"earapi/internal/service"
)

type MockDataService struct {
	mock.Mock
}

func (m *MockDataService) Query(ctx context.Context, q service.DataQuery) (*service.PageResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PageResult), args.Error(1)
}

func (m *MockDataService) History(ctx context.Context, limit, offset int) (*service.QueryLogListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.QueryLogListResult), args.Error(1)
}

func (m *MockDataService) HistoryEntry(ctx context.Context, id string) (*model.QueryLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueryLog), args.Error(1)
}
