// Package optimization generates platform metadata for rendered clips:
// title, description, hashtags, thumbnail timestamp, and a predicted
// engagement score. Output is deterministic for identical inputs unless
// exploration mode is enabled.
package optimization
