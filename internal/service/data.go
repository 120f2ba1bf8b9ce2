package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"earapi/internal/apperr"
	"earapi/internal/catalog"
	"earapi/internal/config"
	"earapi/internal/logging"
	"earapi/internal/metrics"
	"earapi/internal/model"
	"earapi/internal/pipeline"
	"earapi/internal/repository"
	"earapi/internal/tabular"
)

var (
	ErrQueryLogDisabled = errors.New("query log is not configured")
	ErrNotFound         = errors.New("query log entry not found")
)

const (
	minYear = 1900
	maxYear = 2100
)

// DataQuery is one /data request after parameter parsing.
type DataQuery struct {
	DatasetID string
	Filter    model.FilterCriteria
	Page      model.PageRequest
}

// PageResult is the service-level DTO for one page of sanitized rows.
type PageResult struct {
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	HasMore  bool              `json:"has_more"`
	Data     []pipeline.Record `json:"data"`
}

// QueryLogListResult is the service-level DTO for paginated query log entries.
type QueryLogListResult struct {
	Items []model.QueryLog `json:"data"`
	Total int              `json:"total"`
}

// Resolver maps a dataset id to its resources.
type Resolver interface {
	Resolve(ctx context.Context, datasetID string) ([]model.Resource, error)
}

// ReaderOpener opens a resource for reading.
type ReaderOpener interface {
	Open(ctx context.Context, url string, format model.Format) (tabular.Reader, error)
}

// DataService defines the use cases behind the data endpoints.
type DataService interface {
	// Query resolves the dataset, reads the selected resource and returns one filtered, sanitized page.
	Query(ctx context.Context, q DataQuery) (*PageResult, error)

	// History lists recorded queries newest first.
	History(ctx context.Context, limit, offset int) (*QueryLogListResult, error)

	// HistoryEntry returns one recorded query.
	HistoryEntry(ctx context.Context, id string) (*model.QueryLog, error)
}

type dataService struct {
	resolver    Resolver
	opener      ReaderOpener
	logs        repository.QueryLogRepository
	dateColumn  string
	nameColumn  string
	maxPageSize int
	metrics     *metrics.Pipeline
}

// NewDataService constructs a DataService. logs may be nil to disable the query log.
func NewDataService(resolver Resolver, opener ReaderOpener, logs repository.QueryLogRepository, cfg *config.AppConfig, m *metrics.Pipeline) DataService {
	return &dataService{
		resolver:    resolver,
		opener:      opener,
		logs:        logs,
		dateColumn:  cfg.Reader.DateColumn,
		nameColumn:  cfg.Reader.NameColumn,
		maxPageSize: cfg.Query.MaxPageSize,
		metrics:     m,
	}
}

func (s *dataService) validate(q DataQuery) error {
	switch {
	case q.DatasetID == "":
		return apperr.New(apperr.ErrValidation, "package_id is required")
	case q.Filter.Year < minYear || q.Filter.Year > maxYear:
		return apperr.New(apperr.ErrValidation, fmt.Sprintf("ano must be between %d and %d", minYear, maxYear))
	case q.Filter.Month != nil && (*q.Filter.Month < 1 || *q.Filter.Month > 12):
		return apperr.New(apperr.ErrValidation, "mes must be between 1 and 12")
	case q.Page.Page < 1:
		return apperr.New(apperr.ErrValidation, "page must be >= 1")
	case q.Page.PageSize < 1:
		return apperr.New(apperr.ErrValidation, "page_size must be >= 1")
	case s.maxPageSize > 0 && q.Page.PageSize > s.maxPageSize:
		return apperr.New(apperr.ErrValidation, fmt.Sprintf("page_size must be <= %d", s.maxPageSize))
	case q.Page.Page-1 > math.MaxInt/q.Page.PageSize:
		return apperr.New(apperr.ErrValidation, "page is too large for page_size")
	}
	return nil
}

func (s *dataService) Query(ctx context.Context, q DataQuery) (*PageResult, error) {
	if err := s.validate(q); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("earapi/service").Start(ctx, "service.Query",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("dataset.id", q.DatasetID),
			attribute.Int("query.year", q.Filter.Year),
			attribute.Int("query.page", q.Page.Page),
			attribute.Int("query.page_size", q.Page.PageSize),
		),
	)
	defer span.End()

	start := time.Now()
	entry := &model.QueryLog{
		DatasetID:  q.DatasetID,
		Year:       q.Filter.Year,
		Month:      q.Filter.Month,
		NameFilter: q.Filter.Name,
		Page:       q.Page.Page,
		PageSize:   q.Page.PageSize,
	}

	res, err := s.query(ctx, q, entry)

	entry.DurationMs = time.Since(start).Milliseconds()
	entry.Status = "ok"
	if err != nil {
		entry.Status = apperr.Code(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, entry.Status)
	}
	s.record(ctx, entry)
	return res, err
}

func (s *dataService) query(ctx context.Context, q DataQuery, entry *model.QueryLog) (*PageResult, error) {
	logger := logging.FromContext(ctx).With("package_id", q.DatasetID)

	resources, err := s.resolver.Resolve(ctx, q.DatasetID)
	if err != nil {
		return nil, err
	}
	url, format, err := catalog.SelectPreferred(resources, q.Filter.Year)
	if err != nil {
		return nil, err
	}
	entry.ResourceURL = url
	logger.Info("resource selected", "url", url, "format", format.String())

	reader, err := s.opener.Open(ctx, url, format)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	src := pipeline.NewFiltered(reader, pipeline.Filter{
		DateColumn: s.dateColumn,
		NameColumn: s.nameColumn,
		Criteria:   q.Filter,
	})
	page, err := pipeline.Paginate(src, q.Page)
	entry.RowsScanned = src.Scanned()
	s.metrics.RowsScanned(src.Scanned())
	if err != nil {
		return nil, err
	}

	data := make([]pipeline.Record, len(page.Rows))
	for i, row := range page.Rows {
		data[i] = pipeline.Sanitize(row)
	}
	entry.Rows = len(data)
	entry.HasMore = page.HasMore
	s.metrics.PageServed(format.String())

	logger.Info("page served",
		"page", q.Page.Page,
		"page_size", q.Page.PageSize,
		"rows", len(data),
		"rows_scanned", src.Scanned(),
		"has_more", page.HasMore,
	)

	return &PageResult{
		Page:     q.Page.Page,
		PageSize: q.Page.PageSize,
		HasMore:  page.HasMore,
		Data:     data,
	}, nil
}

// record stores entry best-effort; a failing query log never fails the request.
func (s *dataService) record(ctx context.Context, entry *model.QueryLog) {
	if s.logs == nil {
		return
	}
	entry.ID = uuid.New().String()
	entry.RequestID = logging.RequestID(ctx)
	entry.CreatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if _, err := s.logs.Create(ctx, entry); err != nil {
		logging.FromContext(ctx).Warn("query log write failed", "error", err)
	}
}

// History returns paginated query log entries without exposing repository types.
func (s *dataService) History(ctx context.Context, limit, offset int) (*QueryLogListResult, error) {
	if s.logs == nil {
		return nil, ErrQueryLogDisabled
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.logs.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &QueryLogListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *dataService) HistoryEntry(ctx context.Context, id string) (*model.QueryLog, error) {
	if s.logs == nil {
		return nil, ErrQueryLogDisabled
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.New(apperr.ErrValidation, "id must be a uuid")
	}
	entry, err := s.logs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}
