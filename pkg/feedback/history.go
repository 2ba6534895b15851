package feedback

import (
	"sync"
	"time"
)

// Entry is one submitted feedback, kept locally by the client for its own
// reputation view alongside the on-chain record.
type Entry struct {
	ServerID  uint64    `json:"server_id"`
	Score     uint8     `json:"score"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Reputation is the client-local aggregate for one rated agent.
type Reputation struct {
	ServerID      uint64  `json:"server_id"`
	FeedbackCount int     `json:"feedback_count"`
	AverageScore  float64 `json:"average_score"`
	LastFeedback  *Entry  `json:"last_feedback,omitempty"`
}

// History accumulates the client's submitted feedback. Safe for
// concurrent use.
type History struct {
	mu      sync.Mutex
	entries []Entry
}

// Add records a submitted feedback entry.
func (h *History) Add(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
}

// Reputation aggregates the history for one agent. An agent with no
// entries yields a zero-count, zero-average view.
func (h *History) Reputation(serverID uint64) Reputation {
	h.mu.Lock()
	defer h.mu.Unlock()

	rep := Reputation{ServerID: serverID}
	var total int
	for i := range h.entries {
		if h.entries[i].ServerID != serverID {
			continue
		}
		rep.FeedbackCount++
		total += int(h.entries[i].Score)
		last := h.entries[i]
		rep.LastFeedback = &last
	}
	if rep.FeedbackCount > 0 {
		rep.AverageScore = float64(total) / float64(rep.FeedbackCount)
	}
	return rep
}
