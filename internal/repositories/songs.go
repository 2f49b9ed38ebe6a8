package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/shared"
)

// SongRepository stores tracks imported from external catalogs and their internal mappings.
//
// It is the sync worker's view of the unresolved set: rows with a NULL internal_id.
type SongRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSongRepository creates a new SongRepository with the given database connection
func NewSongRepository(db *sql.DB) *SongRepository {
	return &SongRepository{db: db, now: time.Now}
}

// ImportExternal inserts tracks that are not yet known by external id and returns how many were added.
//
// Existing rows, resolved or not, are left untouched.
func (r *SongRepository) ImportExternal(ctx context.Context, tracks []models.ExternalTrack) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO songs (id, external_id, source, title, artist, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	now := r.now().UTC()
	for i, t := range tracks {
		if t.ExternalID == "" {
			continue
		}
		source := t.Source
		if source == "" {
			source = "spotify"
		}

		// offset keeps playlist order stable when sorting by created_at
		res, err := stmt.ExecContext(ctx, shared.GenerateID(), t.ExternalID, source, t.Title, t.Artist, t.DurationSec, now.Add(time.Duration(i)*time.Microsecond))
		if err != nil {
			return 0, fmt.Errorf("failed to insert song %s: %w", t.ExternalID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return added, nil
}

// PullUnresolvedBatch returns up to limit unresolved songs, oldest import first.
func (r *SongRepository) PullUnresolvedBatch(ctx context.Context, limit int) ([]models.SyncBatchItem, error) {
	query := `
		SELECT external_id, title, artist, duration
		FROM songs
		WHERE internal_id IS NULL
		ORDER BY created_at, external_id
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved songs: %w", err)
	}
	defer rows.Close()

	var items []models.SyncBatchItem
	for rows.Next() {
		var it models.SyncBatchItem
		if err := rows.Scan(&it.ExternalID, &it.Title, &it.Artist, &it.DurationSec); err != nil {
			return nil, fmt.Errorf("failed to scan unresolved song: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unresolved songs: %w", err)
	}
	return items, nil
}

// CountUnresolved returns how many imported songs still lack an internal id.
func (r *SongRepository) CountUnresolved(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM songs WHERE internal_id IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unresolved songs: %w", err)
	}
	return n, nil
}

// WriteMapping records the internal id for an imported song.
func (r *SongRepository) WriteMapping(ctx context.Context, externalID, internalID string) error {
	if internalID == "" {
		return fmt.Errorf("%w: internal id is required", shared.ErrInvalidArgument)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE songs SET internal_id = ?, resolved_at = ? WHERE external_id = ?`,
		internalID, r.now().UTC(), externalID,
	)
	if err != nil {
		return fmt.Errorf("failed to write mapping: %w", err)
	}

	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, externalID)
	}
	return nil
}

// InternalID returns the mapped id for externalID; ok is false while the song is unresolved.
func (r *SongRepository) InternalID(ctx context.Context, externalID string) (id string, ok bool, err error) {
	song, err := r.Get(ctx, externalID)
	if err != nil {
		return "", false, err
	}
	return song.InternalID, song.InternalID != "", nil
}

// Get retrieves a song by external id.
func (r *SongRepository) Get(ctx context.Context, externalID string) (*models.Song, error) {
	query := `
		SELECT id, external_id, source, title, artist, duration, internal_id, created_at, resolved_at
		FROM songs
		WHERE external_id = ?
	`

	song, err := r.scanOne(r.db.QueryRowContext(ctx, query, externalID))
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, externalID)
	}
	return song, err
}

// List returns songs in import order, optionally only the unresolved ones.
func (r *SongRepository) List(ctx context.Context, unresolvedOnly bool, limit int) ([]*models.Song, error) {
	query := `
		SELECT id, external_id, source, title, artist, duration, internal_id, created_at, resolved_at
		FROM songs
	`
	if unresolvedOnly {
		query += " WHERE internal_id IS NULL"
	}
	query += " ORDER BY created_at, external_id"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	defer rows.Close()

	var songs []*models.Song
	for rows.Next() {
		song, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

func (r *SongRepository) scanOne(row scanner) (*models.Song, error) {
	var (
		s          models.Song
		internalID sql.NullString
		resolvedAt sql.NullTime
	)

	err := row.Scan(&s.ID, &s.ExternalID, &s.Source, &s.Title, &s.Artist, &s.DurationSec, &internalID, &s.CreatedAt, &resolvedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}

	s.InternalID = internalID.String
	if resolvedAt.Valid {
		s.ResolvedAt = &resolvedAt.Time
	}
	return &s, nil
}
