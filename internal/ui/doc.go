// Package ui implements the terminal download monitor using bubbletea's Elm architecture.
//
// The [Model] moves through three views:
//  1. [ConfirmView] : pre-run census and assistant status, enter starts the download
//  2. [DownloadView] : spinner, progress bar and the latest per-track log lines
//  3. [ResultView] : run summary and failed tracks, c asks for car-audio repackaging
//
// Progress updates arrive on the same channel the plain CLI output reads, so the
// orchestrator is unaware of which front end is attached. Pressing q during a download
// cancels the run context; the orchestrator stops between tracks and the summary is still shown.
package ui
