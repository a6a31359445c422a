// Package tasks runs the download pipeline with real-time progress reporting.
//
// # Download Orchestration
//
// [Downloader] walks a playlist in order. For each track it:
//
//  1. Looks the track up in the [tracking.Store]; a present entry whose file still
//     exists means the track is skipped
//  2. Derives "Artist - Title" through the [NameCleaner]
//  3. Allocates "{NN}. {name}.mp3" without overwriting existing files
//  4. Runs the [Acquirer] (primary search, then one fallback)
//  5. Tags the file and records it, flushing the tracking store immediately
//
// A failure affects only its own track. Cancelling the context stops the loop before
// the next track and the summary still reports what was done.
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Run History
//
// The optional [RunRecorder] interface persists each run and its per-track outcomes
// (repositories.RunRepository). Errors are logged and never interrupt downloads.
package tasks
