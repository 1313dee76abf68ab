package domain

import "time"

// ConversationRecord is one logged question outcome. Records are append-only;
// blocked questions are logged too. An empty Category means none was assigned.
type ConversationRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Category  string    `json:"category,omitempty"`
	IsBlocked bool      `json:"is_blocked"`
	Timestamp time.Time `json:"timestamp"`
}
