// Package models defines the value types passed between the resolution pipeline's components.
//
// Playback:
//   - [TrackRef] : logical song reference, possibly unresolved (external id only)
//   - [ResolvedStream] : playable URL with its [StreamSource]
//   - [PreloadCacheEntry] : TTL bookkeeping for prefetched tracks
//
// Lyrics:
//   - [LyricsResult] : one provider's answer
//   - [PersistedLyrics] : stored answer, or the [LyricsNotFound] marker
//
// Cross-catalog sync:
//   - [ExternalTrack] and [Song] : imported rows
//   - [SyncBatchItem] : unresolved row handed to the sync worker
//   - [CatalogItem] : catalog search candidate
package models
