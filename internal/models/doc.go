// Package models defines domain entities and persistence interfaces for tapedeck.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects: lightweight structs built from the playlist source
//   - [Playlist] : playlist metadata with its ordered tracks
//   - [Track] : one playlist entry with the stable id used for download tracking
//   - [RunSummary] : counts derived from a single download run
//
// 2. Persistent Entities: database-backed run history
//   - [DownloadRun] : one invocation of the download pipeline
//   - [TrackOutcome] : the final state of one track within a run
//
// Persistent entities implement [Model], and [Repository] describes their CRUD access.
package models
