package models

// ContentDocument is the JSON body pinned to the content store for a post.
// The ledger never reads it back; it only keeps the returned reference.
type ContentDocument struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Tags        []string `json:"tags" yaml:"tags"`
	PostedBy    string   `json:"postedBy" yaml:"postedBy"`
	Timestamp   string   `json:"timestamp" yaml:"timestamp"`
}
