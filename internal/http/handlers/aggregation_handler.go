// README: Aggregation trigger handlers for admins and the cron caller.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"taxifare/internal/modules/aggregation"
)

type AggregationRunner interface {
	RunNow(ctx context.Context) (aggregation.Result, error)
}

// aggregationResponse flattens the run result next to the status field.
type aggregationResponse struct {
	Status string `json:"status"`
	aggregation.Result
}

type AggregationHandler struct {
	aggregation AggregationRunner
}

func NewAggregationHandler(svc AggregationRunner) *AggregationHandler {
	return &AggregationHandler{aggregation: svc}
}

func (h *AggregationHandler) Run(c *gin.Context) {
	res, err := h.aggregation.RunNow(c.Request.Context())
	if err != nil {
		writeAggregationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, aggregationResponse{Status: "ok", Result: res})
}
