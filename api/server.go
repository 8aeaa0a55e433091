// Package api implements the read-only HTTP API of spec §5: run history,
// per-run step metrics, per-step output rows, and a graph view, all
// served straight off the per-run DuckDB files under a logs directory.
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	defaultRowsLimit = 100
	maxRowsLimit     = 1000
)

// NewServer builds an *echo.Echo with the run history endpoints mounted
// under /api, reading from logsDir.
func NewServer(logsDir string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	repo := newRepository(logsDir)
	g := e.Group("/api")
	g.GET("/runs", listRunsHandler(repo))
	g.GET("/runs/:run_name", runDetailsHandler(repo))
	g.GET("/runs/:run_name/graph", runGraphHandler(repo))
	g.GET("/runs/:run_name/steps/:step_name/rows", stepRowsHandler(repo))
	g.GET("/health", healthHandler)

	return e
}

func listRunsHandler(repo *repository) echo.HandlerFunc {
	return func(c echo.Context) error {
		runs, err := repo.listRuns()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, runs)
	}
}

func runDetailsHandler(repo *repository) echo.HandlerFunc {
	return func(c echo.Context) error {
		details, err := repo.runDetails(c.Param("run_name"))
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, details)
	}
}

func runGraphHandler(repo *repository) echo.HandlerFunc {
	return func(c echo.Context) error {
		graph, err := repo.runGraph(c.Param("run_name"))
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, graph)
	}
}

func stepRowsHandler(repo *repository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := defaultRowsLimit
		if raw := c.QueryParam("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxRowsLimit {
				return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 1000")
			}
			limit = n
		}
		offset := 0
		if raw := c.QueryParam("offset"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "offset must be >= 0")
			}
			offset = n
		}

		page, err := repo.stepRows(c.Param("run_name"), c.Param("step_name"), limit, offset)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, page)
	}
}

func healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func mapError(err error) error {
	switch {
	case err == ErrRunNotFound:
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	case err == ErrStepNotFound:
		return echo.NewHTTPError(http.StatusNotFound, "step not found")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
