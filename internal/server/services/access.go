package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dkovalov/filegate/internal/common"
	"github.com/dkovalov/filegate/internal/server/access"
	"github.com/dkovalov/filegate/internal/server/blob"
	"github.com/dkovalov/filegate/internal/server/config"
	"github.com/dkovalov/filegate/internal/server/directory"
	"github.com/dkovalov/filegate/internal/server/models"
	"github.com/dkovalov/filegate/internal/server/repositories/repomanager"
)

// AccessService gates file downloads and listings by group membership.
type AccessService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	auth         *AuthService
	membership   directory.GroupMembership
	blobs        blob.Store
	storeTimeout time.Duration
}

func NewAccessService(db *sql.DB, m repomanager.RepositoryManager, auth *AuthService, membership directory.GroupMembership, blobs blob.Store, cfg *config.Config) *AccessService {
	return &AccessService{
		db:           db,
		repomanager:  m,
		auth:         auth,
		membership:   membership,
		blobs:        blobs,
		storeTimeout: cfg.StoreTimeout,
	}
}

// CheckDownload resolves the caller's identity and evaluates the download
// permission for the file. On success it returns the file record so the
// caller layer can serve or presign it. An unknown file is reported before
// authentication, matching the surface this replaced.
func (s *AccessService) CheckDownload(ctx context.Context, src AuthSource, fileID int64) (*models.FileRecord, error) {
	fctx, fcancel := storeCtx(ctx, s.storeTimeout)
	defer fcancel()

	file, err := s.repomanager.Files(s.db).Get(fctx, fileID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	userID, err := s.auth.ResolveIdentity(ctx, src)
	resolved := err == nil
	if err != nil && !errors.Is(err, common.ErrUnauthenticated) {
		return nil, err
	}

	var groups []int64
	if resolved {
		gctx, gcancel := storeCtx(ctx, s.storeTimeout)
		groups, err = s.membership.ListGroupIDs(gctx, userID)
		gcancel()
		if err != nil {
			return nil, mapStoreErr(err)
		}
	}

	decision := access.CanDownload(resolved, groups, file)
	if !decision.Allowed {
		switch decision.Reason {
		case access.DenyUnauthenticated:
			return nil, common.ErrUnauthenticated
		default:
			return nil, fmt.Errorf("%w: no permission to download this file", common.ErrPermissionDenied)
		}
	}

	return file, nil
}

// Open performs the download check and returns a stream of the file's
// bytes. The caller closes it.
func (s *AccessService) Open(ctx context.Context, src AuthSource, fileID int64) (io.ReadCloser, *models.FileRecord, error) {
	file, err := s.CheckDownload(ctx, src, fileID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Open(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, err
	}

	return rc, file, nil
}

// DownloadURL performs the download check and returns a time-limited URL
// instead of a stream.
func (s *AccessService) DownloadURL(ctx context.Context, src AuthSource, fileID int64) (string, *models.FileRecord, error) {
	file, err := s.CheckDownload(ctx, src, fileID)
	if err != nil {
		return "", nil, err
	}

	url, err := s.blobs.PresignGet(ctx, file.StorageKey)
	if err != nil {
		return "", nil, err
	}

	return url, file, nil
}

// ListAccessible returns the files the caller may see in a listing: public
// ones plus those matching the caller's groups. Deliberately narrower than
// the download check (see the access package).
func (s *AccessService) ListAccessible(ctx context.Context, src AuthSource) ([]*models.FileRecord, error) {
	userID, err := s.auth.ResolveIdentity(ctx, src)
	if err != nil {
		return nil, err
	}

	gctx, gcancel := storeCtx(ctx, s.storeTimeout)
	groups, err := s.membership.ListGroupIDs(gctx, userID)
	gcancel()
	if err != nil {
		return nil, mapStoreErr(err)
	}

	fctx, fcancel := storeCtx(ctx, s.storeTimeout)
	files, err := s.repomanager.Files(s.db).List(fctx)
	fcancel()
	if err != nil {
		return nil, mapStoreErr(err)
	}

	return access.ListAccessible(groups, files), nil
}
