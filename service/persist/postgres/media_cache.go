package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/Veetaha/snowpity/service/persist"
)

// TgMediaCacheRepository is a postgres repository for cached Telegram media.
// The cache is append-only: concurrent inserts of the same key are resolved by
// ON CONFLICT DO NOTHING, the first writer wins.
type TgMediaCacheRepository struct {
	db *sql.DB

	getByPostStmt *sql.Stmt
	insertStmt    *sql.Stmt
}

// NewTgMediaCacheRepository creates a new postgres repository for cached Telegram media
func NewTgMediaCacheRepository(db *sql.DB) *TgMediaCacheRepository {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	getByPostStmt, err := db.PrepareContext(ctx, `SELECT BLOB_ID,TG_FILE_ID,TG_FILE_KIND FROM tg_media_cache WHERE PLATFORM = $1 AND POST_ID = $2;`)
	checkNoErr(err)

	insertStmt, err := db.PrepareContext(ctx, `INSERT INTO tg_media_cache (PLATFORM,POST_ID,BLOB_ID,TG_FILE_ID,TG_FILE_KIND) VALUES ($1,$2,$3,$4,$5) ON CONFLICT (PLATFORM,POST_ID,BLOB_ID) DO NOTHING;`)
	checkNoErr(err)

	return &TgMediaCacheRepository{
		db:            db,
		getByPostStmt: getByPostStmt,
		insertStmt:    insertStmt,
	}
}

// GetByPost returns every cached blob recorded for a post. An unknown post
// yields an empty list, not an error.
func (r *TgMediaCacheRepository) GetByPost(ctx context.Context, postID persist.PostID) ([]persist.CachedBlob, error) {
	res := make([]persist.CachedBlob, 0, 4)
	rows, err := r.getByPostStmt.QueryContext(ctx, postID.Platform, postID.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var blob persist.CachedBlob
		var kind int
		err := rows.Scan(&blob.BlobID, &blob.File.ID, &kind)
		if err != nil {
			return nil, err
		}
		blob.File.Kind = persist.TgFileKind(kind)
		res = append(res, blob)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return res, nil
}

// Insert records a cached blob. Inserting an existing key is a no-op.
func (r *TgMediaCacheRepository) Insert(ctx context.Context, postID persist.PostID, blob persist.CachedBlob) error {
	_, err := r.insertStmt.ExecContext(ctx, postID.Platform, postID.ID, blob.BlobID, blob.File.ID, int(blob.File.Kind))
	return err
}
