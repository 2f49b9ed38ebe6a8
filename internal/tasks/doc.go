// Package tasks runs the pipeline's background work with real-time progress reporting.
//
// # Scheduling
//
// [Scheduler] runs unique named jobs. Enqueueing with [Keep] while a run is active
// queues exactly one follow-up; a second request is dropped. A job returning
// [ResultRetry] is re-run after an exponential backoff (30s doubling, capped at 5h).
//
// [Pool] bounds fire-and-forget work such as stream prefetches. Submission never blocks.
//
// # Catalog Sync
//
// [SyncWorker] matches tracks imported from other catalogs to internal catalog ids,
// one batch per run:
//
//  1. Pull up to 50 unresolved tracks
//  2. Search the catalog for "{title} {artist}", one search per 500ms
//  3. Pick the first candidate within ±5s of the imported duration, else the first candidate
//  4. Write the mapping; per-track failures are counted and left for later
//  5. Enqueue another run while unresolved tracks remain
//
// [Importer] fills the unresolved set from an external playlist.
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Sends use select with
// default, so a slow or absent reader never stalls the work.
package tasks
