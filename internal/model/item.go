package model

// Item is a single inventory record. An ID of 0 means the store has not
// assigned one yet.
type Item struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	ImageMime   string `json:"image_mime,omitempty"`
}
