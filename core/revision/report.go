package revision

// Outcome is the per-request result. Details order matches the input
// request order.
type Outcome struct {
	Index   int    `json:"index"`
	Action  string `json:"action,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Report aggregates the results of one apply run.
// Applied+Failed always equals TotalRequests: each request yields exactly
// one outcome, even when its processing panics.
type Report struct {
	RunID            string    `json:"run_id"`
	TotalRequests    int       `json:"total_requests"`
	Applied          int       `json:"applied"`
	Failed           int       `json:"failed"`
	AnnotationsAdded int       `json:"annotations_added"`
	DocumentDigest   string    `json:"document_digest"`
	Details          []Outcome `json:"details"`
}
