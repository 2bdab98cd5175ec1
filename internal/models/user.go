package models

import "strings"

// UserInfo is the profile of the authenticated Moodle user. It is persisted under
// the "user" key next to the session id and never on its own.
type UserInfo struct {
	UserID    *int64 `json:"userid,omitempty"`
	Username  string `json:"username"`
	Fullname  string `json:"fullname,omitempty"`
	Email     string `json:"email,omitempty"`
	Sitename  string `json:"sitename,omitempty"`
	MoodleURL string `json:"moodle_url"`
}

// Valid reports whether the profile carries the one required field.
func (u *UserInfo) Valid() bool {
	return u != nil && strings.TrimSpace(u.Username) != ""
}

// DisplayName prefers the full name and falls back to the username.
func (u *UserInfo) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Fullname != "" {
		return u.Fullname
	}
	return u.Username
}

// FirstName is the first word of the full name, or the username.
func (u *UserInfo) FirstName() string {
	if u == nil {
		return ""
	}
	if fields := strings.Fields(u.Fullname); len(fields) > 0 {
		return fields[0]
	}
	return u.Username
}
