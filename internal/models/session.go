package models

import "time"

// Persisted storage keys.
const (
	StorageKeySessionID = "sessionId"
	StorageKeyUser      = "user"
)

// Session is the full server-side record returned by /api/auth/session-info.
// Timestamps are kept as sent because the backend emits zone-less ISO strings.
type Session struct {
	SessionID    string   `json:"session_id"`
	MoodleURL    string   `json:"moodle_url"`
	Token        string   `json:"token,omitempty"`
	UserInfo     UserInfo `json:"user_info"`
	CreatedAt    string   `json:"created_at,omitempty"`
	LastAccessed string   `json:"last_accessed,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a backend timestamp, treating zone-less values as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Created returns CreatedAt as a time when it parses.
func (s *Session) Created() (time.Time, bool) {
	return ParseTimestamp(s.CreatedAt)
}

// LastAccess returns LastAccessed as a time when it parses.
func (s *Session) LastAccess() (time.Time, bool) {
	return ParseTimestamp(s.LastAccessed)
}
