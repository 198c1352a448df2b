package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dkovalov/filegate/internal/common"
	"github.com/dkovalov/filegate/internal/dbx"
)

// PostgresCredentialDirectory verifies logins against the forum's users
// table. Passwords there are bcrypt hashes.
type PostgresCredentialDirectory struct {
	db dbx.DBTX
}

func NewPostgresCredentialDirectory(db dbx.DBTX) *PostgresCredentialDirectory {
	return &PostgresCredentialDirectory{db: db}
}

func (d *PostgresCredentialDirectory) Verify(ctx context.Context, identifier, password string) (int64, error) {

	query :=
		`SELECT id, password FROM users
		 WHERE username = $1 OR email = $1
		 `

	var userID int64
	var hash string

	err := d.db.QueryRowContext(ctx, query, identifier).Scan(&userID, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Burn a comparison anyway so unknown identifiers cost the
			// same as wrong passwords.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return 0, common.ErrAuthFailed
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return 0, common.ErrAuthFailed
	}

	return userID, nil
}

// dummyHash is a bcrypt hash of an unguessable throwaway value, used to keep
// verification timing uniform for unknown identifiers.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// PostgresGroupMembership reads and mutates the forum's group_user join
// table.
type PostgresGroupMembership struct {
	db dbx.DBTX
}

func NewPostgresGroupMembership(db dbx.DBTX) *PostgresGroupMembership {
	return &PostgresGroupMembership{db: db}
}

func (d *PostgresGroupMembership) Add(ctx context.Context, userID, groupID int64) error {
	query :=
		`INSERT INTO group_user (user_id, group_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `

	if _, err := d.db.ExecContext(ctx, query, userID, groupID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (d *PostgresGroupMembership) Remove(ctx context.Context, userID int64, groupIDs []int64) error {
	if len(groupIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(groupIDs))
	args := make([]any, 0, len(groupIDs)+1)
	args = append(args, userID)
	for i, id := range groupIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`DELETE FROM group_user WHERE user_id = $1 AND group_id IN (%s)`,
		strings.Join(placeholders, ", "))

	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (d *PostgresGroupMembership) ListGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT group_id FROM group_user WHERE user_id = $1`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
