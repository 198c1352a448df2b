package services

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkovalov/filegate/internal/common"
	"github.com/dkovalov/filegate/internal/server/blob"
	"github.com/dkovalov/filegate/internal/server/config"
	"github.com/dkovalov/filegate/internal/server/models"
	"github.com/dkovalov/filegate/internal/server/repositories/repomanager"
)

// allowedExtensions is the upload allowlist. Everything else is refused at
// registration time.
var allowedExtensions = map[string]struct{}{
	"zip": {}, "rar": {}, "7z": {}, "tar": {}, "gz": {},
	"pdf": {}, "txt": {},
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {},
	"mp3": {}, "mp4": {}, "avi": {}, "mkv": {},
}

// RegisteredFile is the outcome of registering a new file: the persisted
// record plus a time-limited URL the administrator uploads the bytes to.
type RegisteredFile struct {
	File      *models.FileRecord
	UploadURL string
}

// FileService is the administrative side of file distribution: registering,
// re-scoping, and removing distributable files. Authorization of the admin
// caller is the boundary layer's job.
type FileService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	blobs        blob.Store
	storeTimeout time.Duration
}

func NewFileService(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store, cfg *config.Config) *FileService {
	return &FileService{
		db:           db,
		repomanager:  m,
		blobs:        blobs,
		storeTimeout: cfg.StoreTimeout,
	}
}

// Register validates the file name, allocates a storage key, persists the
// record, and returns a presigned PUT URL for the payload.
func (s *FileService) Register(ctx context.Context, originalName string, size int64, mimeType string, isPublic bool, allowedGroups []int64) (*RegisteredFile, error) {
	if originalName == "" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrValidation)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, fmt.Errorf("%w: file type %q not allowed", common.ErrValidation, ext)
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	key := blob.RandomStorageKey()

	uploadURL, err := s.blobs.PresignPut(ctx, key)
	if err != nil {
		return nil, err
	}

	file := &models.FileRecord{
		StorageKey:    key,
		OriginalName:  originalName,
		Size:          size,
		MimeType:      mimeType,
		IsPublic:      isPublic,
		AllowedGroups: allowedGroups,
	}

	cctx, cancel := storeCtx(ctx, s.storeTimeout)
	defer cancel()

	if _, err := s.repomanager.Files(s.db).Create(cctx, file); err != nil {
		return nil, mapStoreErr(err)
	}

	return &RegisteredFile{File: file, UploadURL: uploadURL}, nil
}

// UpdatePolicy patches a file's visibility. Nil isPublic or nil
// allowedGroups leave that part of the policy unchanged.
func (s *FileService) UpdatePolicy(ctx context.Context, fileID int64, isPublic *bool, allowedGroups []int64) error {
	cctx, cancel := storeCtx(ctx, s.storeTimeout)
	defer cancel()

	return mapStoreErr(s.repomanager.Files(s.db).UpdatePolicy(cctx, fileID, isPublic, allowedGroups))
}

// Delete removes the blob first and the record second, so a half-finished
// delete leaves a record pointing at nothing rather than an orphaned blob a
// record can no longer reach.
func (s *FileService) Delete(ctx context.Context, fileID int64) error {
	cctx, cancel := storeCtx(ctx, s.storeTimeout)
	file, err := s.repomanager.Files(s.db).Get(cctx, fileID)
	cancel()
	if err != nil {
		return mapStoreErr(err)
	}

	if err := s.blobs.Delete(ctx, file.StorageKey); err != nil {
		return err
	}

	dctx, dcancel := storeCtx(ctx, s.storeTimeout)
	defer dcancel()

	if _, err := s.repomanager.Files(s.db).Delete(dctx, fileID); err != nil {
		return mapStoreErr(err)
	}
	return nil
}

// ListAll returns every file record, unfiltered. This is the management
// listing; the access-gated listing lives on AccessService.
func (s *FileService) ListAll(ctx context.Context) ([]*models.FileRecord, error) {
	cctx, cancel := storeCtx(ctx, s.storeTimeout)
	defer cancel()

	files, err := s.repomanager.Files(s.db).List(cctx)
	return files, mapStoreErr(err)
}
