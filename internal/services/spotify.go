// Spotify API implementation of [PlaylistSource]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// GrantClientCredentials selects the app-only flow in [SpotifyService.Authenticate].
	GrantClientCredentials = "client_credentials"
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type"` // track or episode
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	IsLocal    bool            `json:"is_local"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylistTracks is one page of playlist items.
type SpotifyPlaylistTracks struct {
	Total int                    `json:"total"`
	Next  *string                `json:"next"`
	Items []SpotifyPlaylistTrack `json:"items"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Owner       Owner                 `json:"owner"`
	Public      bool                  `json:"public"`
	Tracks      SpotifyPlaylistTracks `json:"tracks"`
	URI         string                `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for removed or unavailable items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyService implements [PlaylistSource] for the Spotify Web API.
// Uses [oauth2] for authentication, a [rate.Limiter] for pacing and
// exponential backoff for throttled or failing requests.
type SpotifyService struct {
	config         *oauth2.Config
	grant          string
	token          *oauth2.Token
	httpClient     *http.Client
	credentials    map[string]string
	baseURL        string
	limiter        *rate.Limiter
	newBackOff     func() backoff.BackOff
	onTokenRefresh func(*oauth2.Token)
	logger         *log.Logger
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = shared.DefaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"playlist-read-private", "playlist-read-collaborative"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		credentials: credentials,
		baseURL:     spotifyBaseURL,
		limiter:     rate.NewLimiter(rate.Limit(10), 1),
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(time.Second),
				backoff.WithMaxInterval(10*time.Second),
			), 3)
		},
		logger: log.Default(),
	}, nil
}

// SetLogger replaces the service logger.
func (s *SpotifyService) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetTokenRefreshCallback registers fn to receive every new access token, including
// the first one. Used to keep the on-disk token cache current.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// Authenticate configures the HTTP client. Accepted credential keys, in order:
//   - "grant" = [GrantClientCredentials]: app-only token, public playlists only
//   - "access_token" (+ optional "refresh_token", "expiry" RFC 3339): cached user token
//   - "auth_code": exchanged for a user token
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if credentials["grant"] == GrantClientCredentials {
		cc := &clientcredentials.Config{
			ClientID:     s.config.ClientID,
			ClientSecret: s.config.ClientSecret,
			TokenURL:     s.config.Endpoint.TokenURL,
		}
		s.grant = GrantClientCredentials
		s.useTokenSource(ctx, cc.TokenSource(ctx))
		return nil
	}

	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		token := &oauth2.Token{AccessToken: accessToken, RefreshToken: credentials["refresh_token"], TokenType: "Bearer"}
		if expiry, err := time.Parse(time.RFC3339, credentials["expiry"]); err == nil {
			token.Expiry = expiry
		}
		s.grant = "user"
		s.token = token
		s.useTokenSource(ctx, s.config.TokenSource(ctx, token))
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrAuthFailed, err)
		}
		s.grant = "user"
		s.token = token
		s.useTokenSource(ctx, s.config.TokenSource(ctx, token))
		return nil
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

func (s *SpotifyService) useTokenSource(ctx context.Context, src oauth2.TokenSource) {
	ts := &refreshableTokenSource{
		source: oauth2.ReuseTokenSource(s.token, src),
		callback: func(t *oauth2.Token) {
			if s.onTokenRefresh != nil {
				s.onTokenRefresh(t)
			}
		},
	}
	s.httpClient = oauth2.NewClient(ctx, ts)
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// OAuthConfig returns the authorization code flow configuration.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Ping verifies the credentials. User tokens are checked against /me; the client
// credentials flow only needs a token.
func (s *SpotifyService) Ping(ctx context.Context) error {
	if s.grant == "" {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}
	if s.grant == GrantClientCredentials {
		return s.doRequest(ctx, http.MethodGet, "/browse/categories?limit=1", nil)
	}
	_, err := s.UserProfile(ctx)
	return err
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Playlist retrieves a playlist by ID including the first page of items.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, endpoint, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// FetchPlaylist retrieves the playlist and every page of its items. Items without a
// track or title are skipped; tracks are numbered from 1 in playlist order.
func (s *SpotifyService) FetchPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, fmt.Errorf("%w: %w: empty playlist id", shared.ErrSourceUnavailable, shared.ErrInvalidArgument)
	}

	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSourceUnavailable, err)
	}

	items := sp.Tracks.Items
	next := sp.Tracks.Next
	for next != nil && *next != "" {
		var page SpotifyPlaylistTracks
		if err := s.doRequest(ctx, http.MethodGet, *next, &page); err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrSourceUnavailable, err)
		}
		items = append(items, page.Items...)
		next = page.Next
	}

	playlist := &models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		Owner:       sp.Owner.DisplayName,
	}
	if playlist.ID == "" {
		playlist.ID = playlistID
	}

	for _, item := range items {
		track, ok := convertTrack(item)
		if !ok {
			continue
		}
		track.Number = len(playlist.Tracks) + 1
		playlist.Tracks = append(playlist.Tracks, track)
	}

	s.logger.Debug("fetched playlist", "id", playlist.ID, "name", playlist.Name, "items", len(items), "tracks", len(playlist.Tracks))
	return playlist, nil
}

func convertTrack(item SpotifyPlaylistTrack) (models.Track, bool) {
	t := item.Track
	if t == nil || strings.TrimSpace(t.Name) == "" || t.Type == "episode" {
		return models.Track{}, false
	}

	artists := lo.FilterMap(t.Artists, func(a SpotifyArtist, _ int) (string, bool) {
		return a.Name, strings.TrimSpace(a.Name) != ""
	})

	return models.Track{
		ID:         t.ID,
		Title:      t.Name,
		Artists:    artists,
		Album:      t.Album.Name,
		DurationMS: t.DurationMS,
	}, true
}

// statusError is a non-2xx response.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("spotify API error: status %d", e.Status)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Body)
}

func (e *statusError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return shared.ErrPlaylistNotFound
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return shared.ErrNotAuthenticated
	case e.Status == http.StatusTooManyRequests || e.Status >= 500:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

func (e *statusError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// doRequest performs an authenticated GET against the Spotify API, retrying throttled
// and server errors. endpoint may be a path under the base URL or an absolute "next" URL.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, result any) error {
	if s.grant == "" {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	op := func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%w: request failed: %w", shared.ErrAPIRequest, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			if serr.retryable() {
				s.logger.Warn("spotify request throttled or failed, retrying", "status", resp.StatusCode, "url", apiURL)
				return serr
			}
			return backoff.Permanent(serr)
		}

		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return backoff.Permanent(fmt.Errorf("%w: failed to decode response: %w", shared.ErrAPIRequest, err))
			}
		}
		return nil
	}

	return backoff.Retry(op, backoff.WithContext(s.newBackOff(), ctx))
}

// ConnectBackoff is the client creation policy: three attempts five seconds apart.
func ConnectBackoff() retry.Backoff {
	return retry.WithMaxRetries(2, retry.NewConstant(5*time.Second))
}

// Connect authenticates source and verifies the connection, retrying with b.
// Missing credentials are not retried.
func Connect(ctx context.Context, source PlaylistSource, credentials map[string]string, b retry.Backoff, logger *log.Logger) error {
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := source.Authenticate(ctx, credentials); err != nil {
			if errors.Is(err, shared.ErrMissingCredentials) {
				return err
			}
			logger.Warn("authentication attempt failed", "service", source.Name(), "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		if err := source.Ping(ctx); err != nil {
			logger.Warn("connection test failed", "service", source.Name(), "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", shared.ErrSourceUnavailable, source.Name(), err)
	}
	logger.Info("connected", "service", source.Name(), "attempts", attempt)
	return nil
}
