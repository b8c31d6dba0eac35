package optimization

// MetadataRecord is the optimization stage output: everything the publisher
// needs beyond the rendered clip itself.
type MetadataRecord struct {
	Title                     string   `json:"title"`
	Description               string   `json:"description"`
	Tags                      []string `json:"tags"`
	ThumbnailTimestampSeconds float64  `json:"thumbnail_timestamp_seconds"`
	EngagementScore           float64  `json:"engagement_score"`
	ModelVersion              string   `json:"model_version"`
}
