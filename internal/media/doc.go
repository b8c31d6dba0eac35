// Package media defines the external media capabilities the pipeline
// consumes: source providers, the probe/transcode engine, and the descriptors
// that travel with artifacts. The production engine shells out to
// ffmpeg/ffprobe; stages depend only on the interfaces.
package media
