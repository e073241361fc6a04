package health

import "context"

// ModelChecker reports whether the classifier artifact can serve predictions.
type ModelChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks prediction cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}
