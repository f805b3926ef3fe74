package search

// Result is a single comment hit returned to the caller.
type Result struct {
	ID              string `json:"id"`
	JournalID       string `json:"journalId"`
	AuthorID        string `json:"authorId"`
	ParentCommentID string `json:"parentCommentId,omitempty"`
	JournalTitle    string `json:"journalTitle"`
	Snippet         string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text      string
	JournalID string // empty = all journals
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// CommentDocument is the data we index for a comment.
type CommentDocument struct {
	ID              string `json:"id"`
	Content         string `json:"content"`
	JournalID       string `json:"journalId"`
	JournalTitle    string `json:"journalTitle"`
	AuthorID        string `json:"authorId"`
	AuthorUsername  string `json:"authorUsername"`
	ParentCommentID string `json:"parentCommentId"`
	CreatedAt       int64  `json:"createdAt"`
}
