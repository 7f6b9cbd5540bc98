// README: Suggestion handlers for suggest-price and predict-price.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taxifare/internal/modules/geo"
	"taxifare/internal/modules/suggest"
)

type Suggester interface {
	Suggest(ctx context.Context, p suggest.Params) suggest.Response
	Predict(ctx context.Context, p suggest.Params) suggest.PredictResponse
}

type SuggestHandler struct {
	suggest Suggester
}

func NewSuggestHandler(svc Suggester) *SuggestHandler {
	return &SuggestHandler{suggest: svc}
}

func (h *SuggestHandler) Suggest(c *gin.Context) {
	p, err := parseSuggestParams(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, h.suggest.Suggest(c.Request.Context(), p))
}

func (h *SuggestHandler) Predict(c *gin.Context) {
	p, err := parseSuggestParams(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, h.suggest.Predict(c.Request.Context(), p))
}

func parseSuggestParams(c *gin.Context) (suggest.Params, error) {
	start, errStart := geo.ParseLatLng(c.Query("start"))
	end, errEnd := geo.ParseLatLng(c.Query("end"))
	if errStart != nil || errEnd != nil {
		return suggest.Params{}, errors.New("query params 'start' and 'end' must be in lat,lng format")
	}
	p := suggest.Params{Start: start, End: end, VehicleType: c.Query("vehicle_type")}

	var err error
	if p.TimeBucket, err = optionalInt(c, "time_bucket", 0, 23); err != nil {
		return suggest.Params{}, err
	}
	if p.DayOfWeek, err = optionalInt(c, "day_of_week", 0, 6); err != nil {
		return suggest.Params{}, err
	}
	return p, nil
}

// optionalInt reads an integer query param in [lo, hi]; nil when absent.
func optionalInt(c *gin.Context, name string, lo, hi int) (*int, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return nil, errors.New("invalid " + name + ". Expected integer " + strconv.Itoa(lo) + ".." + strconv.Itoa(hi))
	}
	return &n, nil
}
