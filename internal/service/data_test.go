package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"earapi/internal/apperr"
	"earapi/internal/config"
	"earapi/internal/logging"
	"earapi/internal/model"
	"earapi/internal/repository"
	repoMocks "earapi/internal/repository/mocks"
	"earapi/internal/tabular"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, id string) ([]model.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Resource), args.Error(1)
}

type mockOpener struct {
	mock.Mock
}

func (m *mockOpener) Open(ctx context.Context, url string, format model.Format) (tabular.Reader, error) {
	args := m.Called(ctx, url, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(tabular.Reader), args.Error(1)
}

// fakeReader serves fixed batches and records Close.
type fakeReader struct {
	schema  *tabular.Schema
	batches []tabular.Batch
	err     error
	pos     int
	closed  bool
}

func (r *fakeReader) Schema() *tabular.Schema { return r.schema }

func (r *fakeReader) Next() (tabular.Batch, error) {
	if r.pos >= len(r.batches) {
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	}
	b := r.batches[r.pos]
	r.pos++
	return b, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

var earSchema = tabular.NewSchema([]string{"ear_data", "nom_reservatorio", "val_ear"})

// yearReader holds 12 months x 3 rows of 2021 in batches of 5, after two 2020 rows.
func yearReader() *fakeReader {
	rows := []tabular.Row{
		{Schema: earSchema, Cells: []tabular.Cell{tabular.Date(time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)), tabular.Text("Furnas"), tabular.Text("1")}},
		{Schema: earSchema, Cells: []tabular.Cell{tabular.Date(time.Date(2020, 6, 2, 0, 0, 0, 0, time.UTC)), tabular.Text("Furnas"), tabular.Text("2")}},
	}
	for m := 1; m <= 12; m++ {
		for d := 1; d <= 3; d++ {
			rows = append(rows, tabular.Row{Schema: earSchema, Cells: []tabular.Cell{
				tabular.Date(time.Date(2021, time.Month(m), d, 0, 0, 0, 0, time.UTC)),
				tabular.Text("Furnas"),
				tabular.Text("1.234,56"),
			}})
		}
	}
	r := &fakeReader{schema: earSchema}
	for i := 0; i < len(rows); i += 5 {
		r.batches = append(r.batches, tabular.Batch(rows[i:min(i+5, len(rows))]))
	}
	return r
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Reader: config.ReaderConfig{DateColumn: "ear_data", NameColumn: "nom_reservatorio"},
		Query:  config.QueryConfig{DefaultPageSize: 100, MaxPageSize: 1000},
	}
}

var resources = []model.Resource{
	{URL: "https://ons/ear_2021.csv", Format: model.FormatCSV, Name: "EAR 2021"},
	{URL: "https://ons/ear_2021.parquet", Format: model.FormatColumnar, Name: "EAR 2021"},
}

func query(page, size int) DataQuery {
	return DataQuery{
		DatasetID: "ear-diario-por-reservatorio",
		Filter:    model.FilterCriteria{Year: 2021},
		Page:      model.PageRequest{Page: page, PageSize: size},
	}
}

func TestDataService_Query(t *testing.T) {
	ctx := logging.WithRequestID(context.Background(), "req-1")

	t.Run("page inside the year", func(t *testing.T) {
		res := new(mockResolver)
		op := new(mockOpener)
		logs := new(repoMocks.MockQueryLogRepository)
		reader := yearReader()

		res.On("Resolve", mock.Anything, "ear-diario-por-reservatorio").Return(resources, nil)
		op.On("Open", mock.Anything, "https://ons/ear_2021.parquet", model.FormatColumnar).Return(reader, nil)
		logs.On("Create", mock.Anything, mock.MatchedBy(func(e *model.QueryLog) bool {
			return e.Status == "ok" && e.Rows == 10 && e.HasMore && e.RequestID == "req-1" &&
				e.ResourceURL == "https://ons/ear_2021.parquet" && e.ID != ""
		})).Return(&model.QueryLog{}, nil)

		svc := NewDataService(res, op, logs, testConfig(), nil)
		got, err := svc.Query(ctx, query(2, 10))

		require.NoError(t, err)
		assert.Equal(t, 2, got.Page)
		assert.Equal(t, 10, got.PageSize)
		assert.True(t, got.HasMore)
		require.Len(t, got.Data, 10)

		first, _ := got.Data[0].Get("ear_data")
		assert.Equal(t, "2021-04-02", first.Str())
		val, _ := got.Data[0].Get("val_ear")
		assert.Equal(t, 1234.56, val.Float())

		assert.True(t, reader.closed)
		assert.Less(t, reader.pos, len(reader.batches), "reader stops early")
		res.AssertExpectations(t)
		op.AssertExpectations(t)
		logs.AssertExpectations(t)
	})

	t.Run("last page", func(t *testing.T) {
		res := new(mockResolver)
		op := new(mockOpener)
		res.On("Resolve", mock.Anything, mock.Anything).Return(resources, nil)
		op.On("Open", mock.Anything, mock.Anything, mock.Anything).Return(yearReader(), nil)

		got, err := NewDataService(res, op, nil, testConfig(), nil).Query(ctx, query(4, 10))

		require.NoError(t, err)
		assert.Len(t, got.Data, 6)
		assert.False(t, got.HasMore)
	})

	t.Run("resolver failure is recorded", func(t *testing.T) {
		res := new(mockResolver)
		op := new(mockOpener)
		logs := new(repoMocks.MockQueryLogRepository)
		res.On("Resolve", mock.Anything, mock.Anything).Return(nil, apperr.New(apperr.ErrUpstreamFetch, "HTTP 503"))
		logs.On("Create", mock.Anything, mock.MatchedBy(func(e *model.QueryLog) bool {
			return e.Status == "UPSTREAM_FETCH_ERROR"
		})).Return(&model.QueryLog{}, nil)

		_, err := NewDataService(res, op, logs, testConfig(), nil).Query(ctx, query(1, 10))

		assert.ErrorIs(t, err, apperr.ErrUpstreamFetch)
		op.AssertNotCalled(t, "Open", mock.Anything, mock.Anything, mock.Anything)
		logs.AssertExpectations(t)
	})

	t.Run("no usable resource", func(t *testing.T) {
		res := new(mockResolver)
		res.On("Resolve", mock.Anything, mock.Anything).Return([]model.Resource{{URL: "https://ons/x.xlsx"}}, nil)

		_, err := NewDataService(res, new(mockOpener), nil, testConfig(), nil).Query(ctx, query(1, 10))
		assert.ErrorIs(t, err, apperr.ErrResourceNotFound)
	})

	t.Run("open failure", func(t *testing.T) {
		res := new(mockResolver)
		op := new(mockOpener)
		res.On("Resolve", mock.Anything, mock.Anything).Return(resources, nil)
		op.On("Open", mock.Anything, mock.Anything, mock.Anything).Return(nil, apperr.New(apperr.ErrDecode, "bad parquet"))

		_, err := NewDataService(res, op, nil, testConfig(), nil).Query(ctx, query(1, 10))
		assert.ErrorIs(t, err, apperr.ErrDecode)
	})

	t.Run("read failure closes reader", func(t *testing.T) {
		res := new(mockResolver)
		op := new(mockOpener)
		reader := &fakeReader{schema: earSchema, err: apperr.New(apperr.ErrUpstreamFetch, "connection reset")}
		res.On("Resolve", mock.Anything, mock.Anything).Return(resources, nil)
		op.On("Open", mock.Anything, mock.Anything, mock.Anything).Return(reader, nil)

		_, err := NewDataService(res, op, nil, testConfig(), nil).Query(ctx, query(1, 10))
		assert.ErrorIs(t, err, apperr.ErrUpstreamFetch)
		assert.True(t, reader.closed)
	})

	t.Run("query log failure does not fail the request", func(t *testing.T) {
		res := new(mockResolver)
		op := new(mockOpener)
		logs := new(repoMocks.MockQueryLogRepository)
		res.On("Resolve", mock.Anything, mock.Anything).Return(resources, nil)
		op.On("Open", mock.Anything, mock.Anything, mock.Anything).Return(yearReader(), nil)
		logs.On("Create", mock.Anything, mock.Anything).Return(nil, sql.ErrConnDone)

		got, err := NewDataService(res, op, logs, testConfig(), nil).Query(ctx, query(1, 5))
		require.NoError(t, err)
		assert.Len(t, got.Data, 5)
	})
}

func TestDataService_QueryValidation(t *testing.T) {
	month := 13
	tests := []struct {
		name string
		q    DataQuery
	}{
		{"missing package id", DataQuery{Filter: model.FilterCriteria{Year: 2021}, Page: model.PageRequest{Page: 1, PageSize: 10}}},
		{"year too small", DataQuery{DatasetID: "x", Filter: model.FilterCriteria{Year: 1800}, Page: model.PageRequest{Page: 1, PageSize: 10}}},
		{"month out of range", DataQuery{DatasetID: "x", Filter: model.FilterCriteria{Year: 2021, Month: &month}, Page: model.PageRequest{Page: 1, PageSize: 10}}},
		{"page zero", DataQuery{DatasetID: "x", Filter: model.FilterCriteria{Year: 2021}, Page: model.PageRequest{Page: 0, PageSize: 10}}},
		{"page size zero", DataQuery{DatasetID: "x", Filter: model.FilterCriteria{Year: 2021}, Page: model.PageRequest{Page: 1, PageSize: 0}}},
		{"page size over max", DataQuery{DatasetID: "x", Filter: model.FilterCriteria{Year: 2021}, Page: model.PageRequest{Page: 1, PageSize: 1001}}},
		{"offset overflows", DataQuery{DatasetID: "x", Filter: model.FilterCriteria{Year: 2021}, Page: model.PageRequest{Page: math.MaxInt/1000 + 2, PageSize: 1000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := new(mockResolver)
			_, err := NewDataService(res, new(mockOpener), nil, testConfig(), nil).Query(context.Background(), tt.q)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			res.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
		})
	}
}

func TestDataService_History(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		svc := NewDataService(new(mockResolver), new(mockOpener), nil, testConfig(), nil)
		_, err := svc.History(ctx, 10, 0)
		assert.ErrorIs(t, err, ErrQueryLogDisabled)
		_, err = svc.HistoryEntry(ctx, "6f1c1c1e-8a51-4c8e-9f4e-1a2b3c4d5e6f")
		assert.ErrorIs(t, err, ErrQueryLogDisabled)
	})

	t.Run("defaults and clamps", func(t *testing.T) {
		logs := new(repoMocks.MockQueryLogRepository)
		logs.On("List", ctx, repository.PageQuery{Limit: 20, Offset: 0}).
			Return(&repository.PageResult[model.QueryLog]{Items: []model.QueryLog{{ID: "a"}}, Total: 1}, nil).Once()
		logs.On("List", ctx, repository.PageQuery{Limit: 100, Offset: 5}).
			Return(&repository.PageResult[model.QueryLog]{Items: []model.QueryLog{}, Total: 1}, nil).Once()

		svc := NewDataService(new(mockResolver), new(mockOpener), logs, testConfig(), nil)

		got, err := svc.History(ctx, 0, -3)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Total)
		assert.Len(t, got.Items, 1)

		_, err = svc.History(ctx, 500, 5)
		require.NoError(t, err)
		logs.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		logs := new(repoMocks.MockQueryLogRepository)
		logs.On("List", ctx, mock.Anything).Return(nil, errors.New("db down"))

		_, err := NewDataService(new(mockResolver), new(mockOpener), logs, testConfig(), nil).History(ctx, 10, 0)
		assert.EqualError(t, err, "db down")
	})
}

func TestDataService_HistoryEntry(t *testing.T) {
	ctx := context.Background()
	const id = "6f1c1c1e-8a51-4c8e-9f4e-1a2b3c4d5e6f"

	tests := []struct {
		name    string
		id      string
		setup   func(m *repoMocks.MockQueryLogRepository)
		wantErr error
	}{
		{
			name: "found",
			id:   id,
			setup: func(m *repoMocks.MockQueryLogRepository) {
				m.On("FindByID", ctx, id).Return(&model.QueryLog{ID: id}, nil)
			},
		},
		{
			name: "not found",
			id:   id,
			setup: func(m *repoMocks.MockQueryLogRepository) {
				m.On("FindByID", ctx, id).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name:    "invalid id",
			id:      "nope",
			setup:   func(m *repoMocks.MockQueryLogRepository) {},
			wantErr: apperr.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := new(repoMocks.MockQueryLogRepository)
			tt.setup(logs)

			got, err := NewDataService(new(mockResolver), new(mockOpener), logs, testConfig(), nil).HistoryEntry(ctx, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, id, got.ID)
			}
			logs.AssertExpectations(t)
		})
	}
}
