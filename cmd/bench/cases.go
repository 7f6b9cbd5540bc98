// README: Acceptance and load cases: suggest, submit, idempotent retries, aggregation trigger, throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"taxifare/internal/infra"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

const (
	routeQuery = "start=33.3152,44.3661&end=33.2925,44.3889"
	driverID   = "bench-driver"
)

var schemaTables = []string{"submissions", "route_clusters", "route_features", "predictions_log"}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "Embedded migrations",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.cfg.DSN == "" {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				if err := infra.MigratePostgres(r.cfg.DSN); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "Schema present",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				for _, t := range schemaTables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		httpCaseMethod("API: health", http.MethodGet, base+"/health", nil, []int{200}, nil),

		// Suggestions
		httpCaseMethod("Suggest: valid route", http.MethodGet, base+"/api/suggest-price?"+routeQuery, nil, []int{200}, nil),
		httpCaseMethod("Suggest: with buckets and vehicle", http.MethodGet,
			base+"/api/suggest-price?"+routeQuery+"&time_bucket=22&day_of_week=5&vehicle_type=sedan", nil, []int{200}, nil),
		httpCaseMethod("Suggest: missing end -> 400", http.MethodGet, base+"/api/suggest-price?start=33.3152,44.3661", nil, []int{400}, nil),
		httpCaseMethod("Suggest: time_bucket 24 -> 400", http.MethodGet, base+"/api/suggest-price?"+routeQuery+"&time_bucket=24", nil, []int{400}, nil),
		httpCaseMethod("Predict: valid route", http.MethodGet, base+"/api/predict-price?"+routeQuery, nil, []int{200}, []int{404}),

		// Submissions
		{
			Name:  "Submit: valid report",
			Focus: "Ingestion",
			Run: func(ctx context.Context, r *Runner) Result {
				status, _, latency, err := r.submit(ctx, report(uuid.NewString(), 8500))
				return statusResult(status, latency, err, []int{200}, []int{401})
			},
		},
		{
			Name:  "Submit: price below minimum -> 400",
			Focus: "Validation",
			Run: func(ctx context.Context, r *Runner) Result {
				status, _, latency, err := r.submit(ctx, report(uuid.NewString(), 10))
				return statusResult(status, latency, err, []int{400}, nil)
			},
		},
		{
			Name:  "Submit: retry returns same submission_id",
			Focus: "Idempotency",
			Run: func(ctx context.Context, r *Runner) Result {
				body := report(uuid.NewString(), 9000)
				s1, id1, _, err := r.submit(ctx, body)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if s1 == http.StatusUnauthorized {
					return Result{Status: "PENDING", Note: "no token and bypass disabled"}
				}
				s2, id2, _, err := r.submit(ctx, body)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if s1 != http.StatusOK || s2 != http.StatusOK || id1 == "" || id1 != id2 {
					return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d/%d ids=%s/%s", s1, s2, id1, id2)}
				}
				return Result{Status: "PASS", Note: "submission_id=" + id1}
			},
		},
		{
			Name:  "Concurrency: parallel duplicate submits",
			Focus: "One row per client_request_id",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentDuplicate(ctx, r)
			},
		},

		// Aggregation
		httpCaseMethod("Aggregation: cron without secret -> 401", http.MethodGet, base+"/api/cron/aggregate", nil, []int{401}, nil),
		{
			Name:  "Aggregation: cron with secret",
			Focus: "Refresh trigger",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.cfg.CronSecret == "" {
					return Result{Status: "SKIP", Note: "cron secret not configured"}
				}
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/cron/aggregate", nil)
				req.Header.Set("X-Cron-Secret", r.cfg.CronSecret)
				status, _, latency, err := r.do(req)
				return statusResult(status, latency, err, []int{200, 409}, nil)
			},
		},

		// Performance
		{
			Name:  "Perf: suggest throughput",
			Focus: "Read path",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, func() (*http.Request, error) {
					return http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/suggest-price?"+routeQuery, nil)
				})
			},
		},
		{
			Name:  "Perf: submit throughput",
			Focus: "Write path (rate limiter may answer 429)",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, func() (*http.Request, error) {
					return r.submitRequest(ctx, report(uuid.NewString(), 8000))
				})
			},
		},
	}
}

func report(clientRequestID string, price int) map[string]any {
	return map[string]any{
		"client_request_id": clientRequestID,
		"start":             map[string]any{"lat": 33.3152, "lng": 44.3661},
		"end":               map[string]any{"lat": 33.2925, "lng": 44.3889},
		"time_of_day":       "day",
		"traffic_level":     2,
		"price":             price,
		"driver_id":         driverID,
	}
}

func (r *Runner) submitRequest(ctx context.Context, body any) (*http.Request, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/api/submit-route", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}
	return req, nil
}

func (r *Runner) submit(ctx context.Context, body any) (int, string, time.Duration, error) {
	req, err := r.submitRequest(ctx, body)
	if err != nil {
		return 0, "", 0, err
	}
	return r.do(req)
}

// do sends req and returns the status, the submission_id if present, and the latency.
func (r *Runner) do(req *http.Request) (int, string, time.Duration, error) {
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, "", 0, err
	}
	defer resp.Body.Close()
	var body struct {
		SubmissionID string `json:"submission_id"`
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &body)
	return resp.StatusCode, body.SubmissionID, time.Since(start), nil
}

func statusResult(status int, latency time.Duration, err error, okStatuses, pendingStatuses []int) Result {
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	note := fmt.Sprintf("status=%d", status)
	if contains(okStatuses, status) {
		return Result{Status: "PASS", Latency: latency, Note: note}
	}
	if contains(pendingStatuses, status) {
		return Result{Status: "PENDING", Latency: latency, Note: note}
	}
	return Result{Status: "FAIL", Latency: latency, Note: note}
}

func httpCaseMethod(name, method, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			var reader io.Reader
			if body != nil {
				b, _ := json.Marshal(body)
				reader = bytes.NewReader(b)
			}
			req, _ := http.NewRequestWithContext(ctx, method, url, reader)
			req.Header.Set("Content-Type", "application/json")
			status, _, latency, err := r.do(req)
			return statusResult(status, latency, err, okStatuses, pendingStatuses)
		},
	}
}

func concurrentDuplicate(ctx context.Context, r *Runner) Result {
	body := report(uuid.NewString(), 8800)
	ids := map[string]int{}
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		fails int
		auth  int
	)
	start := make(chan struct{})
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			status, id, _, err := r.submit(ctx, body)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				fails++
			case status == http.StatusUnauthorized:
				auth++
			case status == http.StatusOK:
				ids[id]++
			default:
				fails++
			}
		}()
	}
	close(start)
	wg.Wait()

	if auth == r.cfg.Concurrency {
		return Result{Status: "PENDING", Note: "no token and bypass disabled"}
	}
	if len(ids) != 1 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("distinct ids=%d failures=%d", len(ids), fails)}
	}
	if r.db != nil {
		var rows int
		err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM submissions WHERE client_request_id = $1", body["client_request_id"]).Scan(&rows)
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		if rows != 1 {
			return Result{Status: "FAIL", Note: fmt.Sprintf("rows=%d", rows)}
		}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("ok=%d failures=%d", r.cfg.Concurrency-fails-auth, fails)}
}

func perfLoad(ctx context.Context, r *Runner, newReq func() (*http.Request, error)) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		count    int64
		errCount int64
		limited  int64
	)

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, err := newReq()
				if err != nil {
					return
				}
				resp, err := r.httpc.Do(req)
				mu.Lock()
				if err != nil {
					errCount++
					mu.Unlock()
					continue
				}
				count++
				if resp.StatusCode == http.StatusTooManyRequests {
					limited++
				}
				mu.Unlock()
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d rate_limited=%d", rps, errCount, limited)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}
