// Package server implements the local HTTP server that receives the OAuth2
// authorization-code redirect during the auth command.
//
// [OAuthHandler] validates the state parameter, exchanges the code for
// tokens, and delivers exactly one [OAuthResult] over its result channel.
// The CLI starts the server, opens the authorization URL in the user's
// browser, waits on the channel with a timeout, and shuts the server down.
package server
