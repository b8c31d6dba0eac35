// Package services provides shared error classification and context helpers
// used across pipeline stages. Sentinel markers tag errors with a failure
// class (transient, validation, configuration, integrity, ...) so the
// orchestrator can decide between retrying, failing the run, or halting for
// investigation without inspecting error strings.
package services
