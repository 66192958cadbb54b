// Package password implements credential hashing and verification with
// argon2id.
//
// # Output format
//
// Digests are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Unlike a random-salt scheme, the salt is derived from a per-user binding
// context (stored salt, phone number, or identifier), so hashing is
// deterministic: the same (secret, context) pair always produces the same
// digest. Verification recomputes with the stored parameters and compares
// the full digest in constant time.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// character classes) is enforced by the Engine.
package password
