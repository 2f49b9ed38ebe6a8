// Package services implements the HTTP clients the resolution pipeline talks to.
//
// # Interfaces
//
// Consumers depend on small interfaces rather than concrete clients:
//   - [StreamBackend] : playable URL lookup and cache warming
//   - [CatalogService] : free-text song search
//   - [PlaylistSource] : external playlist export
//
// # Clients
//
// [APIService] is the shared JSON-over-HTTP client. Every other client wraps one or more of them.
//
//   - [StreamService] : GET /stream/{id} and POST /stream/preload on the stream backend
//   - [YouTubeService] : search, lyrics and subtitles through the ytmusicapi proxy.
//     The auth_file path is sent via the X-Auth-File header.
//   - [SpotifyService] : playlist export with a client-credentials token
//   - [LrcLibService] and [KuGouService] : fuzzy title/artist lyric sources
//
// # Error Handling
//
// Clients wrap sentinel errors from the shared package:
//   - [shared.ErrAPIRequest] : transport failure or unexpected status
//   - [shared.ErrServiceUnavailable] : the stream backend answered but could not serve the track
//   - [shared.ErrLyricsUnavailable] : a lyric source has nothing for the track
//   - [shared.ErrPlaylistNotFound] : unknown playlist id
package services
