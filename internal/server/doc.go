// Package server exposes a small operational HTTP surface for a running pipeline.
//
// # Routes
//
//   - GET /metrics serves the pipeline's Prometheus collectors through promhttp.
//   - GET /healthz answers "ok" while the process is up.
//   - GET /status returns the JSON status document produced by a [StatusFunc].
//
// # Router
//
// [BasicRouter] wraps [http.ServeMux] with method filtering and a [Middleware] stack.
// Middleware added first runs outermost. [Logging] and [Recover] are the stock middleware.
//
// Custom handlers implement [Handler], which adds Routes to [http.Handler] so a single
// value can own several paths.
//
// # Lifecycle
//
// [Server.Serve] blocks until its context is cancelled, then shuts down gracefully
// within [DefaultShutdownTimeout].
package server
