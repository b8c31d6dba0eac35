// Package main hosts the clipforge CLI entrypoint and command graph.
//
// The Cobra-based command tree queues runs, drives the pipeline in the
// foreground or as a daemon worker pool, renders run status, verifies
// provenance, exports audit documents, and scaffolds configuration. It
// centralizes configuration resolution and store wiring so subcommands focus
// on user experience; the pipeline semantics live in the internal packages.
package main
