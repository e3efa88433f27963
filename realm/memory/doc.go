// Package memory is an in-process credential verifier for tests, tools and
// small deployments.
//
// Users hold an Argon2id password hash and zero or more roles; roles grant
// zero or more permissions. Verify resolves both sets once, so the resulting
// principal is fixed for the lifetime of the session it opens.
//
// Credentials use the keys "username" and "password".
package memory
