// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxifare/internal/http/handlers"
	"taxifare/internal/http/middleware"
	"taxifare/internal/infra"
	"taxifare/internal/metrics"
)

type ServerDeps struct {
	Suggest     handlers.Suggester
	Submission  handlers.Submitter
	Aggregation handlers.AggregationRunner
	Verifier    infra.TokenVerifier
	CronSecret  string
	SubmitRate  float64
	SubmitBurst int
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	if deps.Verifier == nil {
		deps.Verifier = infra.DisabledVerifier{}
	}
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging(), middleware.Metrics())

	suggestHandler := handlers.NewSuggestHandler(s.deps.Suggest)
	r.GET("/api/suggest-price", suggestHandler.Suggest)
	r.GET("/api/predict-price", suggestHandler.Predict)

	submissionHandler := handlers.NewSubmissionHandler(s.deps.Submission)
	r.POST("/api/submit-route",
		middleware.RateLimit(s.deps.SubmitRate, s.deps.SubmitBurst),
		middleware.OptionalAuth(s.deps.Verifier),
		submissionHandler.Submit,
	)

	aggregationHandler := handlers.NewAggregationHandler(s.deps.Aggregation)
	r.POST("/api/admin/run-aggregation",
		middleware.Auth(s.deps.Verifier),
		middleware.RequireRole("admin"),
		aggregationHandler.Run,
	)
	r.GET("/api/cron/aggregate", middleware.CronSecret(s.deps.CronSecret), aggregationHandler.Run)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	return r
}
