package uploads

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/suifan/internal/client/models"
	"github.com/dmitrijs2005/suifan/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `id, blob_id, metadata_id, filename, content_type, size, encrypted,
	register_digest, certify_digest, created_at`

func (r *SQLiteRepository) Insert(ctx context.Context, u models.Upload) (int64, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO uploads (blob_id, metadata_id, filename, content_type, size, encrypted,
			register_digest, certify_digest, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.BlobID, u.MetadataID, u.Filename, u.ContentType, u.Size, u.Encrypted,
		u.RegisterDigest, u.CertifyDigest, u.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to insert upload %s: %w", u.BlobID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read upload id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Upload, error) {
	out, err := dbx.Collect(ctx, r.db, scanUpload,
		`SELECT `+selectColumns+` FROM uploads ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) FindByBlobID(ctx context.Context, blobID string) ([]models.Upload, error) {
	out, err := dbx.Collect(ctx, r.db, scanUpload,
		`SELECT `+selectColumns+` FROM uploads WHERE blob_id = ? ORDER BY id`, blobID)
	if err != nil {
		return nil, fmt.Errorf("failed to find uploads of %s: %w", blobID, err)
	}
	return out, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	wipe := func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM uploads`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'uploads'`)
		return err
	}

	var err error
	if b, ok := r.db.(dbx.Beginner); ok {
		err = dbx.WithTx(ctx, b, nil, wipe)
	} else {
		err = wipe(ctx, r.db)
	}
	if err != nil {
		return fmt.Errorf("failed to clear uploads: %w", err)
	}
	return nil
}

func scanUpload(rows *sql.Rows) (models.Upload, error) {
	var (
		u       models.Upload
		created int64
	)
	if err := rows.Scan(&u.ID, &u.BlobID, &u.MetadataID, &u.Filename, &u.ContentType, &u.Size,
		&u.Encrypted, &u.RegisterDigest, &u.CertifyDigest, &created); err != nil {
		return u, fmt.Errorf("scan upload row: %w", err)
	}
	u.CreatedAt = time.UnixMilli(created)
	return u, nil
}
