// Package token verifies signed bearer tokens as login credentials.
//
// A token is a JWT whose "sub" claim names the principal and whose "roles"
// and "permissions" claims carry its authorization sets. Tokens are signed
// with HS256 or Ed25519. The [Realm] can also issue tokens, for trusted
// issuers and tests.
//
// Credentials use the key "token".
package token
