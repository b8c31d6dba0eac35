// Package editing builds edit plans from scored segments. A plan is an
// ordered list of source windows, with transitions, whose total duration
// fits the configured target within one rounding unit.
package editing
