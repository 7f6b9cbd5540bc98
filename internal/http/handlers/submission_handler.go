// README: Submission handler for driver price reports.
package handlers

import (
	"context"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"taxifare/internal/http/middleware"
	"taxifare/internal/modules/submission"
	"taxifare/internal/types"
)

type Submitter interface {
	Submit(ctx context.Context, cmd submission.SubmitCommand, callerUID string) (submission.Result, error)
}

type SubmissionHandler struct {
	submission Submitter
}

func NewSubmissionHandler(svc Submitter) *SubmissionHandler {
	return &SubmissionHandler{submission: svc}
}

// Numbers arrive as float64 so non-integers get a field-specific 400
// instead of a generic decode error.
type submitRouteReq struct {
	ClientRequestID string       `json:"client_request_id"`
	Start           *types.Point `json:"start"`
	End             *types.Point `json:"end"`
	StartLabel      *string      `json:"start_label"`
	EndLabel        *string      `json:"end_label"`
	TimeOfDay       string       `json:"time_of_day"`
	TrafficLevel    *float64     `json:"traffic_level"`
	ETASeconds      *float64     `json:"eta_s"`
	Price           *float64     `json:"price"`
	VehicleType     string       `json:"vehicle_type"`
	DriverID        string       `json:"driver_id"`
}

func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req submitRouteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Start == nil || req.End == nil {
		writeError(c, http.StatusBadRequest, "start and end are required")
		return
	}
	traffic, ok := wholeNumber(req.TrafficLevel)
	if !ok {
		writeError(c, http.StatusBadRequest, "traffic_level must be an integer 1-3")
		return
	}
	eta, ok := wholeNumber(req.ETASeconds)
	if !ok {
		writeError(c, http.StatusBadRequest, "eta_s must be an integer")
		return
	}
	price, ok := wholeNumber(req.Price)
	if !ok || price == nil {
		writeError(c, http.StatusBadRequest, "price must be an integer")
		return
	}

	res, err := h.submission.Submit(c.Request.Context(), submission.SubmitCommand{
		ClientRequestID: req.ClientRequestID,
		Start:           *req.Start,
		End:             *req.End,
		StartLabel:      req.StartLabel,
		EndLabel:        req.EndLabel,
		TimeOfDay:       req.TimeOfDay,
		TrafficLevel:    traffic,
		ETASeconds:      eta,
		Price:           *price,
		VehicleType:     req.VehicleType,
		DriverID:        req.DriverID,
	}, middleware.CallerUID(c))
	if err != nil {
		writeSubmissionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// wholeNumber converts an optional JSON number; ok is false for fractions.
func wholeNumber(v *float64) (*int, bool) {
	if v == nil {
		return nil, true
	}
	if math.IsNaN(*v) || math.Trunc(*v) != *v || math.Abs(*v) > math.MaxInt32 {
		return nil, false
	}
	n := int(*v)
	return &n, true
}
