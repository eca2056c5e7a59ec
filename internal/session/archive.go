package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"interiorDesignAi/internal/design"
	"interiorDesignAi/internal/media"
	"interiorDesignAi/internal/storage"
	"interiorDesignAi/internal/vision"
)

// AnalysisRecord is a successful analysis and the inputs behind it.
type AnalysisRecord struct {
	SessionID      string
	Language       design.Language
	Style          design.Style
	CustomItems    string
	Instructions   string
	Dimensions     design.RoomDimensions
	FurnitureCount int
	Analysis       design.DesignAnalysis
}

// Archive keeps finished analyses and their renders beyond the session.
type Archive interface {
	RecordAnalysis(ctx context.Context, rec AnalysisRecord) (string, error)
	RecordView(ctx context.Context, reportID string, view design.View, img vision.ImageResult) error
}

// ReportArchive stores reports in a storage.Store and renders in a media.Store.
type ReportArchive struct {
	reports storage.Store
	renders media.Store
	logger  *zap.Logger
}

// NewReportArchive wires the archive; a nil media store disables render uploads.
func NewReportArchive(reports storage.Store, renders media.Store, logger *zap.Logger) *ReportArchive {
	if renders == nil {
		renders = media.Disabled()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportArchive{reports: reports, renders: renders, logger: logger}
}

// RecordAnalysis implements Archive.
func (a *ReportArchive) RecordAnalysis(ctx context.Context, rec AnalysisRecord) (string, error) {
	report, err := a.reports.CreateReport(ctx, storage.Report{
		SessionID:      rec.SessionID,
		Language:       rec.Language,
		Style:          rec.Style,
		CustomItems:    rec.CustomItems,
		Instructions:   rec.Instructions,
		Dimensions:     rec.Dimensions,
		FurnitureCount: rec.FurnitureCount,
		Analysis:       rec.Analysis,
	})
	if err != nil {
		return "", fmt.Errorf("archive: create report: %w", err)
	}
	a.logger.Debug("report archived", zap.String("report_id", report.ID), zap.String("session_id", rec.SessionID))
	return report.ID, nil
}

// RecordView uploads a render and attaches it to its report. A disabled
// media store is not an error.
func (a *ReportArchive) RecordView(ctx context.Context, reportID string, view design.View, img vision.ImageResult) error {
	data, err := media.InlineImage{Data: img.Data, MIMEType: img.MIME}.Bytes()
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	stored, err := a.renders.Put(ctx, media.Object{
		Prefix:      reportID,
		Name:        string(view) + media.ExtensionFor(img.MIME),
		ContentType: img.MIME,
		Data:        data,
	})
	if errors.Is(err, media.ErrStoreDisabled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("archive: upload %s render: %w", view, err)
	}
	if _, err := a.reports.AttachRender(ctx, reportID, view, storage.Render{
		Key:       stored.Key,
		URL:       stored.URL,
		MIMEType:  img.MIME,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("archive: attach %s render: %w", view, err)
	}
	return nil
}
