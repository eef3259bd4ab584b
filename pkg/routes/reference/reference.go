// Package reference exposes the reference index over HTTP: build stats for
// operators and a rebuild trigger for after ledger imports.
package reference

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/refindex"
)

// Register registers the reference index routes on the given group.
func Register(g *echo.Group) {
	g.GET("", GetIndexStats)
	g.POST("/rebuild", RebuildIndex)
}

// GetIndexStats returns build statistics for the currently served index.
func GetIndexStats(c echo.Context) error {
	ctx := c.Request().Context()

	_, manager, err := ectoinject.GetContext[*refindex.Manager](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	idx, err := manager.Current()
	if err != nil {
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "reference index not loaded")
	}

	return c.JSON(http.StatusOK, idx.Stats())
}

// RebuildIndex reloads the ledger from the database and swaps the served
// index. Concurrent rebuilds collapse into one; losers get a conflict.
func RebuildIndex(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, manager, err := ectoinject.GetContext[*refindex.Manager](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	idx, err := manager.Rebuild(ctx)
	if err != nil {
		if errors.Is(err, refindex.ErrRebuildInProgress) {
			return httperror.NewHTTPError(http.StatusConflict, "index rebuild already in progress")
		}
		return err
	}

	return c.JSON(http.StatusOK, idx.Stats())
}
