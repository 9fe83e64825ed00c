package monitor

import "time"

// Event is one shard lifecycle transition published onto the bus. It
// never carries record payloads, only progress metadata.
type Event struct {
	ShardIndex int       `json:"shard_index"`
	ShardID    string    `json:"shard_id"`
	State      string    `json:"state"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Time       time.Time `json:"time"`
}

// ShardSnapshot is one shard's current lifecycle state, as reported by
// GET /status.
type ShardSnapshot struct {
	Index    int    `json:"index"`
	ShardID  string `json:"shard_id"`
	State    string `json:"state"`
	ExitCode *int   `json:"exit_code,omitempty"`
}
