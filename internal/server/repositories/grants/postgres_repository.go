package grants

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dkovalov/filegate/internal/dbx"
	"github.com/dkovalov/filegate/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert relies on the (user_id, group_id) primary key so two concurrent
// grant requests for the same pair cannot both insert. The xmax = 0 check
// distinguishes a fresh insert from an update of an existing row.
func (r *PostgresRepository) Upsert(ctx context.Context, userID, groupID int64, expiresAt *time.Time) (*models.RoleGrant, bool, error) {

	query :=
		`INSERT INTO role_grants (user_id, group_id, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (user_id, group_id)
		 DO UPDATE SET expires_at = EXCLUDED.expires_at, updated_at = now()
		 RETURNING expires_at, created_at, updated_at, (xmax = 0)
		 `

	g := &models.RoleGrant{UserID: userID, GroupID: groupID}
	var inserted bool

	err := r.db.QueryRowContext(ctx, query, userID, groupID, expiresAt).
		Scan(&g.ExpiresAt, &g.CreatedAt, &g.UpdatedAt, &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	return g, inserted, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.RoleGrant, error) {
	query :=
		`SELECT user_id, group_id, expires_at, created_at, updated_at FROM role_grants
		 WHERE user_id = $1
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.RoleGrant, error) {
	query :=
		`SELECT user_id, group_id, expires_at, created_at, updated_at FROM role_grants
		 WHERE expires_at IS NOT NULL AND expires_at <= $1
		 `

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

// DeleteExpiredForUser re-checks the expiry in the WHERE clause and reports
// the deleted group IDs via RETURNING, so a grant renewed after it was
// listed survives and never shows up in the result.
func (r *PostgresRepository) DeleteExpiredForUser(ctx context.Context, userID int64, now time.Time) ([]int64, error) {
	query :=
		`DELETE FROM role_grants
		 WHERE user_id = $1 AND expires_at IS NOT NULL AND expires_at <= $2
		 RETURNING group_id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var groupIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		groupIDs = append(groupIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return groupIDs, nil
}

func scanGrants(rows *sql.Rows) ([]*models.RoleGrant, error) {
	var result []*models.RoleGrant

	for rows.Next() {
		g := models.RoleGrant{}
		if err := rows.Scan(&g.UserID, &g.GroupID, &g.ExpiresAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
