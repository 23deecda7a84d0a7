// Package auth provides authentication for the partforge API.
//
// Callers authenticate with HS256-signed JWT bearer tokens. A verified
// token carries the user ID in "sub" and the global full-access flag in
// "full_access". The HTTP middleware loads the user record and attaches it
// to the request context via WithUser/UserFromContext.
//
// Password hashing for registration and login uses bcrypt.
//
// Project-scoped authorization lives in the authz package; this package
// only establishes who the caller is.
package auth
