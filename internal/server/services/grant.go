package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dkovalov/filegate/internal/common"
	"github.com/dkovalov/filegate/internal/dbx"
	"github.com/dkovalov/filegate/internal/logging"
	"github.com/dkovalov/filegate/internal/server/config"
	"github.com/dkovalov/filegate/internal/server/directory"
	"github.com/dkovalov/filegate/internal/server/models"
	"github.com/dkovalov/filegate/internal/server/repositories/repomanager"
)

// GrantSweepReport summarizes one expiry-reconciliation pass.
type GrantSweepReport struct {
	// ExpiredCount is the number of grant records actually deleted.
	ExpiredCount int64
	// GroupsRemoved maps each user to the groups whose grant records were
	// deleted. A grant renewed mid-pass keeps its record and its membership
	// and is not reported.
	GroupsRemoved map[int64][]int64
}

// GrantService creates and updates time-limited group grants and reconciles
// expired ones against the live membership store.
type GrantService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	membership   directory.GroupMembership
	logger       logging.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

func NewGrantService(db *sql.DB, m repomanager.RepositoryManager, membership directory.GroupMembership, logger logging.Logger, cfg *config.Config) *GrantService {
	return &GrantService{
		db:           db,
		repomanager:  m,
		membership:   membership,
		logger:       logger,
		storeTimeout: cfg.StoreTimeout,
		now:          time.Now,
	}
}

// GrantExpiry maps a duration code to an expiry instant. Lifetime grants
// return nil. Unknown codes fail with ErrInvalidDuration.
func GrantExpiry(code string, now time.Time) (*time.Time, error) {
	var expires time.Time

	switch code {
	case "7d":
		expires = now.AddDate(0, 0, 7)
	case "30d":
		expires = now.AddDate(0, 0, 30)
	case "180d":
		expires = now.AddDate(0, 0, 180)
	case "1y":
		expires = now.AddDate(1, 0, 0)
	case "lifetime":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q (use 7d, 30d, 180d, 1y, or lifetime)", common.ErrInvalidDuration, code)
	}

	return &expires, nil
}

// Assign upserts the grant for (userID, groupID). A fresh grant also adds
// the user to the live group: if the membership add fails, the grant record
// is rolled back, so a grant record never outlives a failed add. The add
// itself runs on its own connection, not the grant transaction, so a commit
// failure after a successful add can leave a membership without a record;
// the add is idempotent, so retrying the Assign converges. An update only
// moves the expiry; the membership is assumed already present.
func (s *GrantService) Assign(ctx context.Context, userID, groupID int64, durationCode string) (*models.RoleGrant, error) {
	if userID <= 0 || groupID <= 0 {
		return nil, fmt.Errorf("%w: userID and groupID are required", common.ErrValidation)
	}

	expiresAt, err := GrantExpiry(durationCode, s.now())
	if err != nil {
		return nil, err
	}

	cctx, cancel := storeCtx(ctx, s.storeTimeout)
	defer cancel()

	var grant *models.RoleGrant

	err = dbx.WithTx(cctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var inserted bool
		var txErr error

		grant, inserted, txErr = s.repomanager.Grants(tx).Upsert(ctx, userID, groupID, expiresAt)
		if txErr != nil {
			return txErr
		}

		if inserted {
			if txErr := s.membership.Add(ctx, userID, groupID); txErr != nil {
				return fmt.Errorf("membership add failed: %w", txErr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	return grant, nil
}

// Grants returns a snapshot of the user's grant records.
func (s *GrantService) Grants(ctx context.Context, userID int64) ([]*models.RoleGrant, error) {
	cctx, cancel := storeCtx(ctx, s.storeTimeout)
	defer cancel()

	grants, err := s.repomanager.Grants(s.db).ListByUser(cctx, userID)
	return grants, mapStoreErr(err)
}

// Sweep finds every expired grant, removes the user's expired groups from
// the live membership store with one batched call per user, and then
// deletes the corresponding grant records. The delete re-checks the expiry
// and reports which pairs it actually removed, so a grant renewed between
// the listing and the delete keeps its record; its membership, stripped a
// moment earlier, is added back before the pass moves on. One user's
// failure does not abort the pass; the records stay put and the next sweep
// repairs them.
func (s *GrantService) Sweep(ctx context.Context) (*GrantSweepReport, error) {
	now := s.now()

	lctx, lcancel := storeCtx(ctx, s.storeTimeout)
	expired, err := s.repomanager.Grants(s.db).ListExpired(lctx, now)
	lcancel()
	if err != nil {
		return nil, mapStoreErr(err)
	}

	report := &GrantSweepReport{GroupsRemoved: map[int64][]int64{}}
	if len(expired) == 0 {
		return report, nil
	}

	perUser := map[int64][]int64{}
	for _, g := range expired {
		perUser[g.UserID] = append(perUser[g.UserID], g.GroupID)
	}

	for userID, groupIDs := range perUser {
		rctx, rcancel := storeCtx(ctx, s.storeTimeout)
		err := s.membership.Remove(rctx, userID, groupIDs)
		rcancel()
		if err != nil {
			s.logger.Warn(ctx, "membership removal failed, grants kept for next sweep",
				"user_id", userID, "groups", len(groupIDs), "error", err)
			continue
		}

		dctx, dcancel := storeCtx(ctx, s.storeTimeout)
		deleted, err := s.repomanager.Grants(s.db).DeleteExpiredForUser(dctx, userID, now)
		dcancel()
		if err != nil {
			// Membership is already gone; the stale records expire again on
			// the next pass and Remove is a no-op then.
			s.logger.Warn(ctx, "grant record deletion failed, retried next sweep",
				"user_id", userID, "error", err)
			continue
		}

		// Pairs that were listed but not deleted were renewed while this
		// pass ran. Their grant is active again, so the membership taken
		// away above goes back.
		for _, groupID := range renewedSince(groupIDs, deleted) {
			actx, acancel := storeCtx(ctx, s.storeTimeout)
			err := s.membership.Add(actx, userID, groupID)
			acancel()
			if err != nil {
				s.logger.Error(ctx, "membership restore failed for renewed grant",
					"user_id", userID, "group_id", groupID, "error", err)
			}
		}

		if len(deleted) > 0 {
			report.ExpiredCount += int64(len(deleted))
			report.GroupsRemoved[userID] = deleted
		}
	}

	return report, nil
}

// renewedSince returns the group IDs in listed that the delete did not
// touch.
func renewedSince(listed, deleted []int64) []int64 {
	gone := make(map[int64]struct{}, len(deleted))
	for _, id := range deleted {
		gone[id] = struct{}{}
	}

	var renewed []int64
	for _, id := range listed {
		if _, ok := gone[id]; !ok {
			renewed = append(renewed, id)
		}
	}
	return renewed
}
