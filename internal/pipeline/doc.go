// Package pipeline orchestrates the six-stage clip transformation: acquire,
// analyze, edit, adapt, optimize, publish. Stages run strictly in order for a
// run, every boundary is recorded in the provenance ledger, and interrupted
// runs resume from their last verified stage output.
package pipeline
