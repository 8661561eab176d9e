package types

import "time"

// Memory item sources
const (
	SourceTurn   = "turn"
	SourceManual = "manual"
)

// MemoryItem is one durable fact in the memory log
type MemoryItem struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Tags       []string   `json:"tags"`
	Importance float64    `json:"importance"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
	Source     string     `json:"source"`
}

// ReferenceTime returns LastUsedAt when set, otherwise CreatedAt
func (m *MemoryItem) ReferenceTime() time.Time {
	if m.LastUsedAt != nil && !m.LastUsedAt.IsZero() {
		return *m.LastUsedAt
	}
	return m.CreatedAt
}
