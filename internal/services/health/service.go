package health

import (
	"context"
	"database/sql"
	"time"
)

const pingTimeout = 2 * time.Second

// Status is the /api/health payload.
type Status struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
}

// Service reports liveness and store reachability.
type Service struct {
	DB *sql.DB
}

// NewService constructs a health service. A nil db means the in-memory store is in use.
func NewService(db *sql.DB) *Service {
	return &Service{DB: db}
}

// Status never fails the probe for a down database; it reports it instead.
func (s *Service) Status(ctx context.Context) Status {
	if s == nil || s.DB == nil {
		return Status{OK: true, Database: "memory"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		return Status{OK: true, Database: "down"}
	}
	return Status{OK: true, Database: "up"}
}
