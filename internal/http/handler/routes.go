package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"

	"earapi/internal/config"
	"earapi/internal/database"
	"earapi/internal/model"
	"earapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// pinger may be nil when no database is configured.
func RegisterRoutes(app *fiber.App, pinger database.Pinger, svc service.DataService, cfg config.QueryConfig) {
	app.Get("/health", HealthCheck(pinger))
	app.Get("/healthz", LivenessProbe())

	app.Get("/data", GetData(svc, cfg))
	app.Get("/queries", ListQueries(svc))
	app.Get("/queries/:id", GetQuery(svc))
}

// HealthCheck godoc
// @Summary Dependency health
// @Description Pings the query log database when one is configured.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(pinger database.Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if pinger == nil {
			return c.JSON(fiber.Map{"status": "healthy", "database": "disabled"})
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := pinger.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.JSON(fiber.Map{"status": "healthy", "database": "up"})
	}
}

// LivenessProbe godoc
// @Summary Liveness probe
// @Tags health
// @Success 200
// @Router /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

func intQuery(c *fiber.Ctx, key string, def int) (int, bool) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def, true
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

// GetData godoc
// @Summary Paginated reservoir energy rows
// @Description Resolves the dataset, reads the resource for the year and returns one filtered page.
// @Tags data
// @Produce json
// @Param package_id query string true "dataset identifier"
// @Param ano query int true "year"
// @Param mes query int false "month (1-12)"
// @Param nome_reservatorio query string false "case-insensitive reservoir name substring"
// @Param page query int false "1-based page" default(1)
// @Param page_size query int false "rows per page" default(100)
// @Success 200 {object} service.PageResult
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /data [get]
func GetData(svc service.DataService, cfg config.QueryConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Query values alias the request buffer; the id outlives the request as a cache key.
		q := service.DataQuery{DatasetID: utils.CopyString(strings.TrimSpace(c.Query("package_id")))}
		if q.DatasetID == "" {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "package_id is required")
		}

		if c.Query("ano") == "" {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "ano is required")
		}
		year, ok := intQuery(c, "ano", 0)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "ano must be an integer")
		}
		q.Filter.Year = year

		if c.Query("mes") != "" {
			month, ok := intQuery(c, "mes", 0)
			if !ok {
				return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "mes must be an integer")
			}
			q.Filter.Month = &month
		}
		if name := utils.CopyString(strings.TrimSpace(c.Query("nome_reservatorio"))); name != "" {
			q.Filter.Name = &name
		}

		page, ok := intQuery(c, "page", 1)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "page must be an integer")
		}
		size, ok := intQuery(c, "page_size", cfg.DefaultPageSize)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "page_size must be an integer")
		}
		q.Page = model.PageRequest{Page: page, PageSize: size}

		res, err := svc.Query(c.UserContext(), q)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// ListQueries godoc
// @Summary Recent data queries
// @Tags queries
// @Produce json
// @Param limit query int false "max entries" default(20)
// @Param offset query int false "entries to skip" default(0)
// @Success 200 {object} service.QueryLogListResult
// @Failure 400 {object} errorPayload
// @Failure 503 {object} errorPayload
// @Router /queries [get]
func ListQueries(svc service.DataService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, ok := intQuery(c, "limit", 20)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, ok := intQuery(c, "offset", 0)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.History(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetQuery godoc
// @Summary One recorded data query
// @Tags queries
// @Produce json
// @Param id path string true "query log id (uuid)"
// @Success 200 {object} model.QueryLog
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 503 {object} errorPayload
// @Router /queries/{id} [get]
func GetQuery(svc service.DataService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		entry, err := svc.HistoryEntry(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(entry)
	}
}
