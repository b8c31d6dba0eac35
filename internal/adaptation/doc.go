// Package adaptation reframes edit plans for vertical delivery. It derives
// per-segment crop windows from detected regions of interest and drives the
// media engine to render the final clip.
package adaptation
