// Package ledger persists pipeline runs and their append-only provenance
// records in SQLite. Every stage boundary writes an entry carrying input and
// output fingerprints; Verify rehashes the recorded artifacts and reports
// tampering, missing artifacts, and chain gaps.
package ledger
