// Package export assembles deferred ZIP exports of a project's latest
// documents and manages their lifecycle through expiry.
package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/repository"
	"github.com/specforge/specforge/pkg/services"
)

// Expiry bounds for export artifacts, in hours.
const (
	MinExpiryHours     = 1
	MaxExpiryHours     = 168
	DefaultExpiryHours = 24
)

// manifestFileName inside the archive.
const manifestFileName = "manifest.json"

// ExportStore is the slice of the repository the service needs.
type ExportStore interface {
	Create(ctx context.Context, tenantID, projectID, requestedBy string, ttl time.Duration) (*models.Export, error)
	Get(ctx context.Context, tenantID, id string) (*models.Export, error)
	ClaimPending(ctx context.Context) (*models.Export, error)
	Complete(ctx context.Context, tenantID, id, filePath string, manifest models.ExportManifest) error
	Fail(ctx context.Context, tenantID, id, errMsg string) error
	ExpireDue(ctx context.Context, now time.Time) ([]*models.Export, error)
}

// DocumentSource resolves the document set to archive.
type DocumentSource interface {
	LatestSet(ctx context.Context, tenantID, projectID string) ([]*models.DocumentVersion, error)
}

// Service creates export records and generates their artifacts.
type Service struct {
	exports   ExportStore
	documents DocumentSource
	dir       string
	logger    *slog.Logger
}

// NewService wires the export service. dir is the artifact directory.
func NewService(exports ExportStore, documents DocumentSource, dir string, logger *slog.Logger) *Service {
	return &Service{
		exports:   exports,
		documents: documents,
		dir:       dir,
		logger:    logger.With("component", "export_service"),
	}
}

// Create validates the expiry window and queues a PENDING export.
func (s *Service) Create(ctx context.Context, tenantID, projectID, userID string, req models.CreateExportRequest) (*models.Export, error) {
	hours := req.ExpiresInHours
	if hours == 0 {
		hours = DefaultExpiryHours
	}
	if hours < MinExpiryHours || hours > MaxExpiryHours {
		return nil, services.NewValidationError("expires_in_hours",
			fmt.Sprintf("must be between %d and %d", MinExpiryHours, MaxExpiryHours))
	}
	if req.Format != "" && req.Format != "zip" {
		return nil, services.NewValidationError("format", "only zip is supported")
	}
	return s.exports.Create(ctx, tenantID, projectID, userID, time.Duration(hours)*time.Hour)
}

// Get returns the export record.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.Export, error) {
	exp, err := s.exports.Get(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, services.ErrNotFound
	}
	return exp, err
}

// OpenDownload returns the artifact path for a downloadable export.
// Expired, unfinished, or file-less exports all surface as not found.
func (s *Service) OpenDownload(ctx context.Context, tenantID, id string) (string, error) {
	exp, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return "", err
	}
	if !exp.IsDownloadable(time.Now().UTC()) {
		return "", services.ErrNotFound
	}
	if _, err := os.Stat(exp.FilePath); err != nil {
		return "", services.ErrNotFound
	}
	return exp.FilePath, nil
}

// Generate assembles the archive for one claimed export: the latest
// non-deleted version of every document type plus a manifest.
func (s *Service) Generate(ctx context.Context, exp *models.Export) error {
	docs, err := s.documents.LatestSet(ctx, exp.TenantID, exp.ProjectID)
	if err != nil {
		return s.fail(ctx, exp, fmt.Errorf("failed to load documents: %w", err))
	}
	if len(docs) == 0 {
		return s.fail(ctx, exp, errors.New("project has no documents to export"))
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return s.fail(ctx, exp, fmt.Errorf("failed to create export directory: %w", err))
	}
	path := filepath.Join(s.dir, exp.ID+".zip")

	manifest, err := writeArchive(path, exp.ProjectID, docs)
	if err != nil {
		_ = os.Remove(path)
		return s.fail(ctx, exp, err)
	}

	if err := s.exports.Complete(ctx, exp.TenantID, exp.ID, path, *manifest); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to complete export %s: %w", exp.ID, err)
	}
	s.logger.Info("Export generated",
		"export_id", exp.ID,
		"project_id", exp.ProjectID,
		"documents", len(manifest.Documents))
	return nil
}

func (s *Service) fail(ctx context.Context, exp *models.Export, cause error) error {
	s.logger.Error("Export generation failed", "export_id", exp.ID, "error", cause)
	if err := s.exports.Fail(ctx, exp.TenantID, exp.ID, cause.Error()); err != nil {
		s.logger.Error("Failed to mark export failed", "export_id", exp.ID, "error", err)
	}
	return cause
}

// writeArchive builds the ZIP and returns its manifest.
func writeArchive(path, projectID string, docs []*models.DocumentVersion) (*models.ExportManifest, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	manifest := &models.ExportManifest{
		ProjectID: projectID,
		CreatedAt: time.Now().UTC(),
	}

	// Deterministic archive layout: stage order, epics by number.
	sorted := make([]*models.DocumentVersion, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.DocumentType != b.DocumentType {
			return typeRank(a.DocumentType) < typeRank(b.DocumentType)
		}
		if a.EpicNumber != nil && b.EpicNumber != nil {
			return *a.EpicNumber < *b.EpicNumber
		}
		return a.Version < b.Version
	})

	for _, doc := range sorted {
		name := archiveName(doc)
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := w.Write([]byte(doc.Content)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		manifest.Documents = append(manifest.Documents, models.ExportManifestEntry{
			Type:      doc.DocumentType,
			Version:   doc.Version,
			Title:     doc.Title,
			PathInZip: name,
		})
	}

	mw, err := zw.Create(manifestFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to add manifest: %w", err)
	}
	enc := json.NewEncoder(mw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return manifest, nil
}

func archiveName(doc *models.DocumentVersion) string {
	if doc.DocumentType == models.DocumentTypePlanEpic && doc.EpicNumber != nil {
		slug := strings.ToLower(strings.Join(strings.Fields(doc.EpicName), "-"))
		if slug == "" {
			slug = "epic"
		}
		return fmt.Sprintf("epics/%02d-%s.md", *doc.EpicNumber, slug)
	}
	return string(doc.DocumentType) + ".md"
}

func typeRank(t models.DocumentType) int {
	switch t {
	case models.DocumentTypeAbout:
		return 0
	case models.DocumentTypeSpecs:
		return 1
	case models.DocumentTypeArchitecture:
		return 2
	case models.DocumentTypePlanOverview:
		return 3
	case models.DocumentTypePlanEpic:
		return 4
	}
	return 5
}
