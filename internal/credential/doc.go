// Package credential turns plaintext passwords into storable hashes and checks
// passwords and one-time codes against stored secrets.
//
// Passwords are hashed with argon2id and encoded in the PHC string format so
// every hash carries its own salt and cost parameters. Hashes produced by
// bcrypt are still accepted for verification. The optional second factor is a
// TOTP strategy selected at startup; a nil SecondFactor means the feature is
// off.
package credential
