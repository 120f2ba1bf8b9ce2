// Package catalog resolves dataset identifiers to downloadable resources through
// the remote catalog API and selects the resource to read for a request.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"earapi/internal/apperr"
	"earapi/internal/config"
	"earapi/internal/logging"
	"earapi/internal/metrics"
	"earapi/internal/model"
)

// Fetcher retrieves and decodes a JSON document.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, dest any) error
}

// Resolver turns a dataset id into its resource list, caching successful lookups.
type Resolver struct {
	fetcher Fetcher
	baseURL string
	cache   *Cache
	metrics *metrics.Pipeline
}

// NewResolver builds a Resolver owning a cache sized from cfg.
func NewResolver(f Fetcher, cfg config.CatalogConfig, m *metrics.Pipeline) *Resolver {
	return &Resolver{
		fetcher: f,
		baseURL: cfg.BaseURL,
		cache:   NewCache(cfg.CacheSize),
		metrics: m,
	}
}

type catalogResponse struct {
	Success bool           `json:"success"`
	Result  *catalogResult `json:"result"`
}

type catalogResult struct {
	Resources []catalogResource `json:"resources"`
}

type catalogResource struct {
	URL    string `json:"url"`
	Format string `json:"format"`
	Name   string `json:"name"`
}

// Resolve returns the resources of datasetID.
func (r *Resolver) Resolve(ctx context.Context, datasetID string) ([]model.Resource, error) {
	ctx, span := otel.Tracer("earapi/catalog").Start(ctx, "catalog.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("dataset.id", datasetID))

	logger := logging.FromContext(ctx).With("package_id", datasetID)

	if res, ok := r.cache.Get(datasetID); ok {
		r.metrics.CacheLookup(true)
		logger.Debug("catalog cache hit", "resources", len(res))
		return slices.Clone(res), nil
	}
	r.metrics.CacheLookup(false)

	endpoint, err := r.endpoint(datasetID)
	if err != nil {
		return nil, err
	}

	logger.Info("fetching catalog metadata")
	var body catalogResponse
	if err := r.fetcher.GetJSON(ctx, endpoint, &body); err != nil {
		span.RecordError(err)
		return nil, apperr.Wrap(apperr.ErrUpstreamFetch, "resolve "+datasetID, err)
	}

	resources, err := parseResources(body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	r.cache.Add(datasetID, resources)
	span.SetAttributes(attribute.Int("catalog.resources", len(resources)))
	logger.Info("catalog metadata resolved", "resources", len(resources))
	return slices.Clone(resources), nil
}

func (r *Resolver) endpoint(datasetID string) (string, error) {
	u, err := url.Parse(r.baseURL)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUpstreamFetch, "parse catalog url", err)
	}
	q := u.Query()
	q.Set("id", datasetID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parseResources(body catalogResponse) ([]model.Resource, error) {
	if !body.Success {
		return nil, apperr.New(apperr.ErrUpstreamProtocol, "catalog reported failure")
	}
	if body.Result == nil || body.Result.Resources == nil {
		return nil, apperr.New(apperr.ErrUpstreamProtocol, "catalog response has no resources")
	}

	out := make([]model.Resource, 0, len(body.Result.Resources))
	for i, res := range body.Result.Resources {
		u := strings.TrimSpace(res.URL)
		if u == "" {
			return nil, apperr.New(apperr.ErrUpstreamProtocol, fmt.Sprintf("resource %d has no url", i))
		}
		out = append(out, model.Resource{
			URL:    u,
			Format: model.ParseFormat(res.Format, u),
			Name:   res.Name,
		})
	}
	return out, nil
}
