package sql

import "context"

//go:generate mockgen -source=metrics.go -destination=mock_metrics.go -package=sql

// Metrics is the recorder the DB wrapper reports statement durations to. It is
// satisfied by metrics.Manager.
type Metrics interface {
	RecordHistogram(ctx context.Context, name string, value float64, labels ...string)
}
