package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"interiorDesignAi/internal/design"
)

// ErrNotFound indicates that a report could not be located in the backing store.
var ErrNotFound = errors.New("report not found")

// maxReports bounds list results and the in-memory archive.
const maxReports = 50

// Report is an archived analysis together with the request that produced it.
type Report struct {
	ID             string                 `json:"id"`
	SessionID      string                 `json:"session_id"`
	Language       design.Language        `json:"language"`
	Style          design.Style           `json:"style"`
	CustomItems    string                 `json:"custom_items,omitempty"`
	Instructions   string                 `json:"instructions,omitempty"`
	Dimensions     design.RoomDimensions  `json:"dimensions"`
	FurnitureCount int                    `json:"furniture_count"`
	Analysis       design.DesignAnalysis  `json:"analysis"`
	Renders        map[design.View]Render `json:"renders,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Render points at a stored visualization of a report.
type Render struct {
	Key       string    `json:"key"`
	URL       string    `json:"url,omitempty"`
	MIMEType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the persistence behaviors the application relies on.
type Store interface {
	CreateReport(ctx context.Context, input Report) (Report, error)
	// ListReports returns the newest reports first; an empty sessionID lists all.
	ListReports(ctx context.Context, sessionID string) ([]Report, error)
	GetReport(ctx context.Context, id string) (Report, error)
	AttachRender(ctx context.Context, id string, view design.View, render Render) (Report, error)
	DeleteReport(ctx context.Context, id string) error
	Close()
}

// NewStore selects a backing store based on whether a database URL is provided.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewInMemoryStore(), nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS design_reports (
        id TEXT PRIMARY KEY,
        session_id TEXT NOT NULL,
        language TEXT NOT NULL,
        style TEXT NOT NULL,
        custom_items TEXT,
        instructions TEXT,
        dimensions JSONB DEFAULT '{}'::jsonb,
        furniture_count INTEGER NOT NULL DEFAULT 0,
        analysis JSONB NOT NULL,
        renders JSONB NOT NULL DEFAULT '{}'::jsonb,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`)
	if err != nil {
		return fmt.Errorf("create design_reports table: %w", err)
	}

	var schemaAlters = []string{
		`CREATE INDEX IF NOT EXISTS design_reports_session_idx ON design_reports (session_id, created_at DESC)`,
	}
	for _, stmt := range schemaAlters {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("alter design_reports table: %w", err)
		}
	}

	return nil
}

func prepareReport(input Report) Report {
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now().UTC()
	}
	if input.Renders == nil {
		input.Renders = map[design.View]Render{}
	}
	return input
}
