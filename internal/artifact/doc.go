// Package artifact implements the content-addressed store that holds every
// stage's input and output payloads. Artifacts are immutable once written and
// addressed by the SHA-256 digest of their uncompressed bytes, which doubles
// as the fingerprint recorded in the provenance ledger. Superseded artifacts
// are retained for audit; removal is left to an external retention policy.
package artifact
