// Package uniuri generates cryptographically secure random strings: session and state
// identifiers, OTP secrets in base32 and slug suffixes.
package uniuri
