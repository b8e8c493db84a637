package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/pkg/config"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
	"github.com/sigep-hr/sigep-api/pkg/storage"
)

var allowedDocumentExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// UploadedDocument describes a stored attachment.
type UploadedDocument struct {
	DocumentID string    `json:"document_id"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// DocumentService stores permission attachments on disk and hands out
// short-lived signed download URLs. The signed URL, not the raw path, is
// what gets persisted on the request as document_url.
type DocumentService struct {
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
	cfg    config.DocumentConfig
	logger *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(store *storage.LocalStorage, signer *storage.SignedURLSigner, cfg config.DocumentConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{store: store, signer: signer, cfg: cfg, logger: logger}
}

// Upload stores the file and returns its signed reference.
func (s *DocumentService) Upload(ctx context.Context, actor *models.JWTClaims, fileName string, size int64, r io.Reader) (*UploadedDocument, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedDocumentExtensions[ext] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only pdf, png and jpg attachments are accepted")
	}

	documentID := uuid.NewString()
	relPath := filepath.Join(time.Now().UTC().Format("2006/01"), documentID+ext)
	if _, err := s.store.SaveStream(relPath, io.LimitReader(r, s.cfg.MaxFileSizeBytes)); err != nil {
		return nil, wrapInternal(err, "failed to store document")
	}
	token, expiresAt, err := s.signer.Generate(documentID, relPath)
	if err != nil {
		return nil, wrapInternal(err, "failed to sign document url")
	}
	return &UploadedDocument{
		DocumentID: documentID,
		URL:        token,
		ExpiresAt:  expiresAt,
	}, nil
}

// Open validates a signed token and returns the underlying file.
func (s *DocumentService) Open(ctx context.Context, token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "document link is invalid or expired")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return file, filepath.Base(relPath), nil
}

// Resign issues a fresh signed URL for an already stored document.
func (s *DocumentService) Resign(ctx context.Context, token string) (*UploadedDocument, error) {
	documentID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "document link is invalid or expired")
	}
	fresh, expiresAt, err := s.signer.Generate(documentID, relPath)
	if err != nil {
		return nil, wrapInternal(err, "failed to sign document url")
	}
	return &UploadedDocument{DocumentID: documentID, URL: fresh, ExpiresAt: expiresAt}, nil
}
