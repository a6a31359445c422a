// Package server runs the local HTTP callback for the Spotify authorization code flow.
//
// [Listen] binds the host of the configured redirect URI and registers an [OAuthHandler] on its
// path through a [BasicRouter]. The handler validates the state parameter, exchanges the
// code and delivers exactly one [OAuthResult]; later callbacks are rejected. [CallbackServer.Wait]
// shuts the server down once that result arrives.
package server
