package health

import (
	"context"
	"database/sql"
)

const (
	StatusUp   = "healthy"
	StatusDown = "unhealthy"
)

type HealthChecker interface {
	Name() string
	Check(ctx context.Context) HealthStatus
}

type HealthStatus struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// DBHealthChecker reports healthy while the event log database answers pings.
type DBHealthChecker struct {
	db *sql.DB
}

func NewDBHealthChecker(db *sql.DB) *DBHealthChecker {
	return &DBHealthChecker{db: db}
}

func (hc *DBHealthChecker) Name() string {
	return "database"
}

// Check performs a health check
func (hc *DBHealthChecker) Check(ctx context.Context) HealthStatus {
	if err := hc.db.PingContext(ctx); err != nil {
		return HealthStatus{Status: StatusDown, Detail: err.Error()}
	}
	return HealthStatus{Status: StatusUp}
}

// StaticHealthChecker always reports healthy. Used when no database is wired.
type StaticHealthChecker struct {
	name string
}

func NewStaticHealthChecker(name string) *StaticHealthChecker {
	return &StaticHealthChecker{name: name}
}

func (sc *StaticHealthChecker) Name() string {
	return sc.name
}

func (sc *StaticHealthChecker) Check(ctx context.Context) HealthStatus {
	return HealthStatus{Status: StatusUp}
}
