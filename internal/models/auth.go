package models

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	MoodleURL string `json:"moodle_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// LoginResponse is the backend's answer to a login attempt.
type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	UserInfo  *UserInfo `json:"user_info,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Complete reports whether the response establishes a session. Anything short of
// success with both a session id and a valid profile is a failed login.
func (r *LoginResponse) Complete() bool {
	return r != nil && r.Success && r.SessionID != "" && r.UserInfo.Valid()
}

// ValidateResponse is the body of GET /api/auth/validate.
type ValidateResponse struct {
	Valid     bool      `json:"valid"`
	UserInfo  *UserInfo `json:"user_info,omitempty"`
	MoodleURL string    `json:"moodle_url,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// LogoutResponse is the body of POST /api/auth/logout.
type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
