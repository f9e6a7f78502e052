package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/iconidentify/clipbatch/internal/domain"
	"github.com/iconidentify/clipbatch/internal/repository"
	"github.com/iconidentify/clipbatch/internal/spreadsheet"
)

// LinkService manages the link set each session uploads.
type LinkService struct {
	links  repository.LinkRepository
	reader spreadsheet.Reader
	logger *slog.Logger
}

// NewLinkService creates a new link service.
func NewLinkService(links repository.LinkRepository, reader spreadsheet.Reader, logger *slog.Logger) *LinkService {
	return &LinkService{
		links:  links,
		reader: reader,
		logger: logger,
	}
}

// Upload reads the links of an .xlsx workbook and makes them the session's
// link set. The previous set is kept when the upload is rejected.
func (s *LinkService) Upload(ctx context.Context, session domain.SessionID, filename string, r io.Reader) ([]string, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return nil, domain.ErrUnsupportedFile
	}

	links, err := s.reader.Read(r)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, domain.ErrNoLinks
	}

	if err := s.links.ReplaceLinks(ctx, session, links); err != nil {
		return nil, fmt.Errorf("store links: %w", err)
	}

	s.logger.Info("links uploaded",
		"session_id", session,
		"filename", filename,
		"count", len(links),
	)

	return links, nil
}

// Links returns the session's current link set.
func (s *LinkService) Links(ctx context.Context, session domain.SessionID) ([]string, error) {
	return s.links.ListLinks(ctx, session)
}
