// Package password hashes and verifies passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<iterations>,p=<threads>$<salt>$<key>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters so a
// credential source can upgrade them. [Hasher.VerifyDecoy] lets a caller spend
// the same effort on unknown accounts as on known ones.
//
// Password policy is not enforced here.
package password
