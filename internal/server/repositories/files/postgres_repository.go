package files

import (
	"context"
	"database/sql"
	"encoding/json"
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

// allowed_groups is stored as a JSON array, the same encoding the records
// had in the forum database they were migrated from.
func encodeGroups(groups []int64) (string, error) {
	if groups == nil {
		groups = []int64{}
	}
	b, err := json.Marshal(groups)
	if err != nil {
		return "", fmt.Errorf("encode allowed_groups: %w", err)
	}
	return string(b), nil
}

func decodeGroups(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var groups []int64
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		return nil, fmt.Errorf("decode allowed_groups: %w", err)
	}
	return groups, nil
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error) {

	groups, err := encodeGroups(file.AllowedGroups)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO files (storage_key, original_name, size, mime_type, is_public, allowed_groups)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		file.StorageKey, file.OriginalName, file.Size, file.MimeType, file.IsPublic, groups).
		Scan(&file.ID, &file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return file, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.FileRecord, error) {
	query :=
		`SELECT id, storage_key, original_name, size, mime_type, is_public, allowed_groups, created_at, updated_at
		 FROM files WHERE id = $1
		 `

	f := &models.FileRecord{}
	var groups string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.StorageKey, &f.OriginalName, &f.Size, &f.MimeType,
		&f.IsPublic, &groups, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if f.AllowedGroups, err = decodeGroups(groups); err != nil {
		return nil, err
	}

	return f, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.FileRecord, error) {
	query :=
		`SELECT id, storage_key, original_name, size, mime_type, is_public, allowed_groups, created_at, updated_at
		 FROM files
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord

	for rows.Next() {
		f := models.FileRecord{}
		var groups string
		err := rows.Scan(&f.ID, &f.StorageKey, &f.OriginalName, &f.Size, &f.MimeType,
			&f.IsPublic, &groups, &f.CreatedAt, &f.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if f.AllowedGroups, err = decodeGroups(groups); err != nil {
			return nil, err
		}
		result = append(result, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) UpdatePolicy(ctx context.Context, id int64, isPublic *bool, allowedGroups []int64) error {

	var groups *string
	if allowedGroups != nil {
		encoded, err := encodeGroups(allowedGroups)
		if err != nil {
			return err
		}
		groups = &encoded
	}

	query :=
		`UPDATE files
		 SET is_public = COALESCE($2, is_public),
		     allowed_groups = COALESCE($3, allowed_groups),
		     updated_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, isPublic, groups)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM files WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}

	return n > 0, nil
}
