package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"interiorDesignAi/internal/design"
)

// PostgresStore persists reports in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const reportColumns = `id, session_id, language, style, custom_items, instructions, dimensions, furniture_count, analysis, renders, created_at`

// CreateReport stores the provided report in PostgreSQL.
func (s *PostgresStore) CreateReport(ctx context.Context, input Report) (Report, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	input = prepareReport(input)

	dims, err := json.Marshal(input.Dimensions)
	if err != nil {
		return Report{}, fmt.Errorf("encode dimensions: %w", err)
	}
	analysis, err := json.Marshal(input.Analysis)
	if err != nil {
		return Report{}, fmt.Errorf("encode analysis: %w", err)
	}
	renders, err := json.Marshal(input.Renders)
	if err != nil {
		return Report{}, fmt.Errorf("encode renders: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO design_reports (`+reportColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		input.ID, input.SessionID, string(input.Language), string(input.Style), input.CustomItems, input.Instructions,
		dims, input.FurnitureCount, analysis, renders, input.CreatedAt); err != nil {
		return Report{}, fmt.Errorf("insert report: %w", err)
	}

	return input, nil
}

// ListReports returns a slice of the most recent reports.
func (s *PostgresStore) ListReports(ctx context.Context, sessionID string) ([]Report, error) {
	query := `SELECT ` + reportColumns + ` FROM design_reports`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = $1`
		args = append(args, sessionID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, maxReports)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		item, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	return reports, nil
}

// GetReport returns a report by ID.
func (s *PostgresStore) GetReport(ctx context.Context, id string) (Report, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM design_reports WHERE id = $1`, id)
	return scanReport(row)
}

// AttachRender merges one render into the report's renders object.
func (s *PostgresStore) AttachRender(ctx context.Context, id string, view design.View, render Render) (Report, error) {
	payload, err := json.Marshal(render)
	if err != nil {
		return Report{}, fmt.Errorf("encode render: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE design_reports SET renders = renders || jsonb_build_object($2::text, $3::jsonb)
         WHERE id = $1 RETURNING `+reportColumns,
		id, string(view), payload)
	return scanReport(row)
}

// DeleteReport removes a report by ID.
func (s *PostgresStore) DeleteReport(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM design_reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases database resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func scanReport(row pgx.Row) (Report, error) {
	var (
		item                      Report
		language, style           string
		customItems, instructions *string
		dims, analysis, renders   []byte
	)
	err := row.Scan(&item.ID, &item.SessionID, &language, &style, &customItems, &instructions,
		&dims, &item.FurnitureCount, &analysis, &renders, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("scan report: %w", err)
	}

	item.Language = design.Language(language)
	item.Style = design.Style(style)
	if customItems != nil {
		item.CustomItems = *customItems
	}
	if instructions != nil {
		item.Instructions = *instructions
	}
	if len(dims) > 0 {
		if err := json.Unmarshal(dims, &item.Dimensions); err != nil {
			return Report{}, fmt.Errorf("decode dimensions: %w", err)
		}
	}
	if err := json.Unmarshal(analysis, &item.Analysis); err != nil {
		return Report{}, fmt.Errorf("decode analysis: %w", err)
	}
	item.Renders = map[design.View]Render{}
	if len(renders) > 0 {
		if err := json.Unmarshal(renders, &item.Renders); err != nil {
			return Report{}, fmt.Errorf("decode renders: %w", err)
		}
	}
	return item, nil
}
