package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/tapedeck/internal/server"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 3 * time.Minute

// spotifyService builds an unauthenticated Spotify client from the configuration.
func (r *Runner) spotifyService() (*services.SpotifyService, error) {
	svc, err := services.NewSpotifyService(map[string]string{
		"client_id":     r.config.Spotify.ClientID,
		"client_secret": r.config.Spotify.ClientSecret,
		"redirect_uri":  r.config.Spotify.RedirectURI,
	})
	if err != nil {
		return nil, err
	}
	svc.SetLogger(r.logger)
	return svc, nil
}

// playlistSource returns a connected playlist source. In user mode a missing token
// cache starts the browser login, as the first run of a fresh install needs it.
func (r *Runner) playlistSource(ctx context.Context) (services.PlaylistSource, error) {
	if r.source != nil {
		return r.source, nil
	}

	svc, err := r.spotifyService()
	if err != nil {
		return nil, err
	}

	creds, err := r.spotifyCredentials(ctx, svc)
	if err != nil {
		return nil, err
	}

	if path := r.config.Spotify.TokenPath; path != "" && creds["grant"] == "" {
		svc.SetTokenRefreshCallback(func(t *oauth2.Token) {
			if err := services.SaveToken(path, t); err != nil {
				r.logger.Warn("failed to update token cache", "path", path, "error", err)
			}
		})
	}

	if err := services.Connect(ctx, svc, creds, services.ConnectBackoff(), r.logger); err != nil {
		return nil, err
	}
	r.source = svc
	return svc, nil
}

func (r *Runner) spotifyCredentials(ctx context.Context, svc *services.SpotifyService) (map[string]string, error) {
	if r.config.Spotify.Auth == "client" {
		return map[string]string{"grant": services.GrantClientCredentials}, nil
	}

	path := r.config.Spotify.TokenPath
	token, err := services.LoadToken(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("ignoring unreadable token cache", "path", path, "error", err)
		}
		r.writePlain("No cached Spotify login found.\n")

		token, err = r.authorize(ctx, svc, authTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrSourceUnavailable, err)
		}
		r.saveToken(token)
	}

	return map[string]string{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"expiry":        token.Expiry.Format(time.RFC3339),
	}, nil
}

// authorize runs the authorization code flow through the local callback server.
func (r *Runner) authorize(ctx context.Context, svc *services.SpotifyService, timeout time.Duration) (*oauth2.Token, error) {
	state := shared.GenerateID()

	srv, err := server.Listen(r.config.Spotify.RedirectURI, svc.OAuthConfig(), state, r.logger)
	if err != nil {
		return nil, err
	}

	authURL := svc.GetAuthURL(state)
	r.writePlain("→ Opening browser for Spotify login...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlain("Open this URL to continue:\n%s\n", authURL)
	}

	return srv.Wait(ctx, timeout)
}

func (r *Runner) saveToken(token *oauth2.Token) {
	path := r.config.Spotify.TokenPath
	if path == "" {
		return
	}
	if err := services.SaveToken(path, token); err != nil {
		r.logger.Warn("failed to cache token", "path", path, "error", err)
		return
	}
	r.logger.Info("token cached", "path", path)
}

// Auth logs in to Spotify and caches the token for later runs.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	if r.config.Spotify.Auth == "client" {
		return r.writePlain("spotify.auth is \"client\": no login needed, public playlists only.\n")
	}

	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	token, err := r.authorize(ctx, svc, cmd.Duration("timeout"))
	if err != nil {
		return err
	}
	r.saveToken(token)

	creds := map[string]string{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"expiry":        token.Expiry.Format(time.RFC3339),
	}
	if err := svc.Authenticate(ctx, creds); err != nil {
		return err
	}

	name := "unknown user"
	if user, err := svc.UserProfile(ctx); err != nil {
		r.logger.Warn("failed to load profile", "error", err)
	} else if user.DisplayName != "" {
		name = user.DisplayName
	} else {
		name = user.ID
	}

	r.writePlain("✓ Logged in to Spotify as %s\n", name)
	if r.config.Spotify.TokenPath != "" {
		r.writePlain("Token saved to %s\n", r.config.Spotify.TokenPath)
	}
	return nil
}
