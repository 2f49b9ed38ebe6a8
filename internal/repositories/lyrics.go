package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vikify/resolver/internal/models"
)

// LyricsRepository persists lyric lookups in SQLite, one row per track id.
type LyricsRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewLyricsRepository creates a new LyricsRepository with the given database connection
func NewLyricsRepository(db *sql.DB) *LyricsRepository {
	return &LyricsRepository{db: db, now: time.Now}
}

// Get returns the stored lookup for trackID, or nil when the track was never looked up.
func (r *LyricsRepository) Get(ctx context.Context, trackID string) (*models.PersistedLyrics, error) {
	query := `SELECT id, lyrics, updated_at FROM lyrics WHERE id = ?`

	var p models.PersistedLyrics
	err := r.db.QueryRowContext(ctx, query, trackID).Scan(&p.TrackID, &p.LyricsText, &p.UpdatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lyrics: %w", err)
	}
	return &p, nil
}

// Upsert inserts or overwrites the stored lookup for trackID.
func (r *LyricsRepository) Upsert(ctx context.Context, trackID, text string) error {
	query := `
		INSERT INTO lyrics (id, lyrics, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET lyrics = excluded.lyrics, updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, trackID, text, r.now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert lyrics: %w", err)
	}
	return nil
}

// Count returns the number of stored lookups and how many of them are negative.
func (r *LyricsRepository) Count(ctx context.Context) (total, notFound int, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(CASE WHEN lyrics = ? THEN 1 ELSE 0 END), 0) FROM lyrics`

	if err := r.db.QueryRowContext(ctx, query, models.LyricsNotFound).Scan(&total, &notFound); err != nil {
		return 0, 0, fmt.Errorf("failed to count lyrics: %w", err)
	}
	return total, notFound, nil
}
