// Package auth authenticates HTTP callers and scopes their threads.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default decides
// when all authenticators abstain.
//
// The middleware puts the caller's tenant into the request context, where
// the thread stores pick it up: a caller only ever sees threads created
// under its own tenant.
package auth
