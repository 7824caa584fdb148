// Package crypto contains the cryptographic routines for keytrace:
// - hash arbitrary data (Digest) using sha3 (shake128)
// - the domain-separated node hashes of the prefix and log trees
// - create a cryptographic commit to a log entry's value
// - generate a random slice of bytes
// Signatures live in crypto/sign, the VRF lives in crypto/vrf.
package crypto
