// README: Aggregation run results and errors.
package aggregation

import (
	"errors"
	"time"
)

var ErrAlreadyRunning = errors.New("aggregation already running")

// Result reports one completed refresh run.
type Result struct {
	ClustersRefreshed   int       `json:"clusters_refreshed"`
	FeatureRowsUpserted int       `json:"feature_rows_upserted"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
}
