package bindings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkovalov/filegate/internal/common"
	"github.com/dkovalov/filegate/internal/dbx"
	"github.com/dkovalov/filegate/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Bind is a single upsert that never overwrites an existing fingerprint:
// on conflict the no-op update lets RETURNING surface the canonical row, so
// concurrent first binds for the same user serialize on the primary key and
// every caller sees the winner.
func (r *PostgresRepository) Bind(ctx context.Context, userID int64, fingerprint string) (*models.DeviceBinding, error) {

	query :=
		`INSERT INTO device_bindings (user_id, hwid)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET hwid = device_bindings.hwid
		 RETURNING hwid, bound_at
		 `

	b := &models.DeviceBinding{UserID: userID}
	err := r.db.QueryRowContext(ctx, query, userID, fingerprint).Scan(&b.Fingerprint, &b.BoundAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return b, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID int64) (*models.DeviceBinding, error) {
	query :=
		`SELECT hwid, bound_at FROM device_bindings
		 WHERE user_id = $1
		 `

	b := &models.DeviceBinding{UserID: userID}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&b.Fingerprint, &b.BoundAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return b, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID int64) (bool, error) {
	query := `DELETE FROM device_bindings WHERE user_id = $1`

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}

	return n > 0, nil
}
