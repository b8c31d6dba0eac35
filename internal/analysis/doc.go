// Package analysis implements the segmentation and scoring stage: pluggable
// boundary detectors split the source into candidate segments and a
// versioned scoring model assigns each one an importance score in [0,1].
// Segments never overlap, are ordered by start offset, and must cover at
// least the configured fraction of the source.
package analysis
