package services

// SkippedItem records an input a stage left out of its output and why.
type SkippedItem struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}
