package dto

// FeedFailure identifies a feed record that was rolled back.
type FeedFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// FeedResponse summarises a bulk load.
type FeedResponse struct {
	BatchID  string        `json:"batch_id"`
	Records  int           `json:"records"`
	Loaded   int           `json:"loaded"`
	Failed   int           `json:"failed"`
	Orders   int           `json:"orders"`
	Failures []FeedFailure `json:"failures,omitempty"`
}
