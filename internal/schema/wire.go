package schema

// HTTP contract between the sync client and the remote event store.
const (
	PushPath   = "/api/sync/push"
	PullPath   = "/api/sync/pull"
	HealthPath = "/health"

	// MaxPullEvents caps the history returned by one pull.
	MaxPullEvents = 20000
)

// PushRequest is the body of a push.
type PushRequest struct {
	Events []Event `json:"events"`
}

// PushResponse reports how many events the remote inserted.
// Events it already had are ignored and not counted.
type PushResponse struct {
	OK    bool   `json:"ok"`
	Saved int    `json:"saved"`
	Error string `json:"error,omitempty"`
}

// PullResponse carries the full event history in ascending ts order.
type PullResponse struct {
	OK     bool    `json:"ok"`
	Events []Event `json:"events"`
	Error  string  `json:"error,omitempty"`
}
