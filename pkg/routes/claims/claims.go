// Package claims exposes the synchronous matching API. Claims arrive here
// already extracted; the routes hand them to the processor and return the
// match outcome without queueing.
package claims

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/matchaudit"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/processor"
)

var validate = validator.New()

// Register registers the claim matching routes on the given group.
func Register(g *echo.Group) {
	g.POST("/match", MatchClaim)
	g.POST("/match/batch", MatchBatch)
}

// RegisterBatches registers the batch report routes on the given group.
func RegisterBatches(g *echo.Group) {
	g.GET("/:id/report", GetBatchReport)
	g.GET("/:id/results", GetBatchResults)
}

// MatchClaim matches a single claim against the reference ledger and
// returns the outcome, including the enriched claim when matched.
func MatchClaim(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.MatchClaimRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, proc, err := ectoinject.GetContext[*processor.Processor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	outcome, err := proc.ProcessClaim(ctx, &req.Claim)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, outcome)
}

// MatchBatch matches a list of claims concurrently and returns the batch
// report. The report is also retained for later retrieval by batch id.
func MatchBatch(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.MatchBatchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, proc, err := ectoinject.GetContext[*processor.Processor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	report, err := proc.ProcessBatch(ctx, req.BatchID, req.Claims)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, report)
}

// GetBatchReport returns a retained batch report. Reports expire after the
// retention window, so a miss is indistinguishable from an unknown batch.
func GetBatchReport(c echo.Context) error {
	ctx := c.Request().Context()

	batchID := c.Param("id")
	if batchID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "batch id is required")
	}

	_, proc, err := ectoinject.GetContext[*processor.Processor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	report, ok := proc.Reports().Get(batchID)
	if !ok {
		return httperror.NewHTTPError(http.StatusNotFound, "batch report not found or expired")
	}

	return c.JSON(http.StatusOK, report)
}

// GetBatchResults returns the persisted audit rows for a batch in decision
// order. Unlike reports these never expire; an unknown batch id yields an
// empty list.
func GetBatchResults(c echo.Context) error {
	ctx := c.Request().Context()

	batchID := c.Param("id")
	if batchID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "batch id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*matchaudit.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rows, err := repo.ListByBatch(ctx, batchID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, matchaudit.ToEntries(rows))
}
