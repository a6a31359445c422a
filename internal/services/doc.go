// Package services implements the external collaborators of the download pipeline.
//
// # Playlist Source
//
// [SpotifyService] implements [PlaylistSource] over the Spotify Web API. Two flows
// are supported:
//   - user: the OAuth2 authorization code flow, with the token cached on disk and
//     refreshed by [oauth2]. [SpotifyService.SetTokenRefreshCallback] receives each new token.
//   - client: the client credentials flow, limited to public playlists.
//
// Requests are paced by a [rate.Limiter] and retried with exponential backoff on
// 429 and 5xx responses. [Connect] wraps authentication and a connection test in
// three attempts five seconds apart.
//
// # Assistant
//
// [OllamaAssistant] implements [Assistant] against a local Ollama server. Liveness
// is cached for 30 seconds so per-track cleaning does not check on every call.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called, or token rejected
//   - [shared.ErrSourceUnavailable] : playlist could not be fetched
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
//   - [shared.ErrServiceUnavailable] : throttled or server errors after retries
//   - [shared.ErrAssistantUnavailable] : Ollama unreachable or returned an error
package services
