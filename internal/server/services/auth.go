package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkovalov/filegate/internal/common"
	"github.com/dkovalov/filegate/internal/server/config"
	"github.com/dkovalov/filegate/internal/server/directory"
	"github.com/dkovalov/filegate/internal/server/models"
	"github.com/dkovalov/filegate/internal/server/repositories/repomanager"
)

// maxTokenIssueAttempts bounds the regenerate-and-retry loop on a token
// primary-key collision. With 256-bit tokens a single collision is already
// astronomically unlikely.
const maxTokenIssueAttempts = 3

// LoginResult is what a successful Authenticate returns: the bearer token,
// its expiry, and a snapshot of the user's group memberships.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    int64
	Groups    []int64
}

// BindingStatus describes a user's device binding for administrative
// inspection. The fingerprint is masked.
type BindingStatus struct {
	Bound       bool
	Fingerprint string
	BoundAt     time.Time
}

// AuthService implements the login path (credential check, trust-on-first-use
// device binding, session issue) and the session-token lifecycle.
type AuthService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	credentials  directory.CredentialDirectory
	membership   directory.GroupMembership
	sessionTTL   time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, creds directory.CredentialDirectory, membership directory.GroupMembership, cfg *config.Config) *AuthService {
	return &AuthService{
		db:           db,
		repomanager:  m,
		credentials:  creds,
		membership:   membership,
		sessionTTL:   cfg.SessionTTL,
		storeTimeout: cfg.StoreTimeout,
		now:          time.Now,
	}
}

// Authenticate verifies credentials, enforces the one-device-per-user
// binding, and issues a session token valid for the configured TTL.
//
// The binding check runs only after the password verifies, so a wrong
// password can never consume the first-use bind. A fingerprint that differs
// from the recorded one fails the whole login with ErrHwidMismatch even
// though the password was correct.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password, fingerprint string) (*LoginResult, error) {
	if identifier == "" || password == "" {
		return nil, fmt.Errorf("%w: identifier and password are required", common.ErrValidation)
	}
	if fingerprint == "" {
		return nil, fmt.Errorf("%w: hardware fingerprint is required", common.ErrValidation)
	}

	cctx, cancel := storeCtx(ctx, s.storeTimeout)
	defer cancel()

	userID, err := s.credentials.Verify(cctx, identifier, password)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	if err := s.bind(ctx, userID, fingerprint); err != nil {
		return nil, err
	}

	session, err := s.issue(ctx, userID)
	if err != nil {
		return nil, err
	}

	gctx, gcancel := storeCtx(ctx, s.storeTimeout)
	defer gcancel()

	groups, err := s.membership.ListGroupIDs(gctx, userID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	return &LoginResult{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		UserID:    userID,
		Groups:    groups,
	}, nil
}

// bind records the fingerprint on first use and verifies it afterwards.
// The repository upsert is atomic, so two concurrent first logins resolve to
// exactly one canonical fingerprint and the loser sees the mismatch.
func (s *AuthService) bind(ctx context.Context, userID int64, fingerprint string) error {
	cctx, cancel := storeCtx(ctx, s.storeTimeout)
	defer cancel()

	repo := s.repomanager.Bindings(s.db)
	binding, err := repo.Bind(cctx, userID, fingerprint)
	if err != nil {
		return mapStoreErr(err)
	}

	if binding.Fingerprint != fingerprint {
		return common.ErrHwidMismatch
	}
	return nil
}

// issue creates a session token, regenerating on the (practically
// impossible) collision instead of failing the login.
func (s *AuthService) issue(ctx context.Context, userID int64) (*models.Session, error) {
	repo := s.repomanager.Sessions(s.db)

	for attempt := 0; attempt < maxTokenIssueAttempts; attempt++ {
		token, err := common.MakeSessionToken()
		if err != nil {
			return nil, common.ErrInternal
		}

		now := s.now()
		session := &models.Session{
			Token:     token,
			UserID:    userID,
			IssuedAt:  now,
			ExpiresAt: now.Add(s.sessionTTL),
		}

		cctx, cancel := storeCtx(ctx, s.storeTimeout)
		err = repo.Create(cctx, session)
		cancel()

		if err == nil {
			return session, nil
		}
		if errors.Is(err, common.ErrDuplicate) {
			continue
		}
		return nil, mapStoreErr(err)
	}

	return nil, common.ErrInternal
}

// ResolveIdentity turns an AuthSource into a user ID. Token identities are
// checked against the session store; ambient identities are trusted as-is
// (the hosting application already authenticated them). An anonymous source
// or a dead token yields ErrUnauthenticated.
func (s *AuthService) ResolveIdentity(ctx context.Context, src AuthSource) (int64, error) {
	switch src.kind {
	case authAmbient:
		return src.userID, nil
	case authToken:
		if src.token == "" {
			return 0, common.ErrUnauthenticated
		}

		cctx, cancel := storeCtx(ctx, s.storeTimeout)
		defer cancel()

		session, err := s.repomanager.Sessions(s.db).Find(cctx, src.token, s.now())
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return 0, common.ErrUnauthenticated
			}
			return 0, mapStoreErr(err)
		}
		return session.UserID, nil
	default:
		return 0, common.ErrUnauthenticated
	}
}

// Revoke deletes a session token before its natural expiry. Revoking an
// unknown token reports false without error, mirroring the sweep's
// idempotence.
func (s *AuthService) Revoke(ctx context.Context, token string) (bool, error) {
	cctx, cancel := storeCtx(ctx, s.storeTimeout)
	defer cancel()

	deleted, err := s.repomanager.Sessions(s.db).Delete(cctx, token)
	return deleted, mapStoreErr(err)
}

// SweepSessions removes every expired session in one atomic statement and
// returns the count. Safe to run concurrently with logins and validations;
// a second immediate run deletes zero rows.
func (s *AuthService) SweepSessions(ctx context.Context) (int64, error) {
	cctx, cancel := storeCtx(ctx, s.storeTimeout)
	defer cancel()

	n, err := s.repomanager.Sessions(s.db).DeleteExpired(cctx, s.now())
	return n, mapStoreErr(err)
}

// GetBindingStatus reports whether the user has a device binding, with the
// fingerprint masked for display.
func (s *AuthService) GetBindingStatus(ctx context.Context, userID int64) (*BindingStatus, error) {
	cctx, cancel := storeCtx(ctx, s.storeTimeout)
	defer cancel()

	binding, err := s.repomanager.Bindings(s.db).Get(cctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &BindingStatus{}, nil
		}
		return nil, mapStoreErr(err)
	}

	return &BindingStatus{
		Bound:       true,
		Fingerprint: binding.MaskedFingerprint(),
		BoundAt:     binding.BoundAt,
	}, nil
}

// ResetBinding removes the user's device binding so the next login performs
// a fresh first-use bind. The bool distinguishes "reset performed" from
// "nothing to reset".
func (s *AuthService) ResetBinding(ctx context.Context, userID int64) (bool, error) {
	cctx, cancel := storeCtx(ctx, s.storeTimeout)
	defer cancel()

	reset, err := s.repomanager.Bindings(s.db).Delete(cctx, userID)
	return reset, mapStoreErr(err)
}
