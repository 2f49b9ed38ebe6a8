// Package repositories implements persistence for the resolution pipeline.
//
// Key Implementations:
//   - [LyricsRepository] : SQLite lyric lookups keyed by track id, including the NOT_FOUND marker
//   - [RedisLyricsStore] : the same contract backed by Redis, selected with lyrics.store = "redis"
//   - [SongRepository] : imported external tracks and their internal-id mappings, read by the sync worker
//
// Lookups that find nothing return (nil, nil) for lyrics and a wrapped [shared.ErrTrackNotFound] for songs.
package repositories
