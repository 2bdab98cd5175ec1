package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginResponse_Complete(t *testing.T) {
	user := &UserInfo{Username: "alice", MoodleURL: "https://moodle.example.edu"}

	tests := []struct {
		name string
		resp *LoginResponse
		want bool
	}{
		{name: "nil", resp: nil, want: false},
		{name: "complete", resp: &LoginResponse{Success: true, SessionID: "abc123", UserInfo: user}, want: true},
		{name: "missing session id", resp: &LoginResponse{Success: true, UserInfo: user}, want: false},
		{name: "missing user info", resp: &LoginResponse{Success: true, SessionID: "abc123"}, want: false},
		{name: "blank username", resp: &LoginResponse{Success: true, SessionID: "abc123", UserInfo: &UserInfo{}}, want: false},
		{name: "not successful", resp: &LoginResponse{Success: false, SessionID: "abc123", UserInfo: user}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resp.Complete())
		})
	}
}

func TestUserInfo_Names(t *testing.T) {
	u := &UserInfo{Username: "alice", Fullname: "Alice Liddell"}
	assert.Equal(t, "Alice", u.FirstName())
	assert.Equal(t, "Alice Liddell", u.DisplayName())

	bare := &UserInfo{Username: "bob"}
	assert.Equal(t, "bob", bare.FirstName())
	assert.Equal(t, "bob", bare.DisplayName())

	var none *UserInfo
	assert.False(t, none.Valid())
	assert.Equal(t, "", none.FirstName())
}

func TestUserInfo_DecodesBackendShape(t *testing.T) {
	raw := `{"userid": 42, "username": "alice", "fullname": "Alice L", "sitename": "Example U", "moodle_url": "https://moodle.example.edu"}`

	var u UserInfo
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	require.NotNil(t, u.UserID)
	assert.Equal(t, int64(42), *u.UserID)
	assert.Equal(t, "Example U", u.Sitename)
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := ParseTimestamp("2024-03-01T10:15:30.123456")
	require.True(t, ok)
	assert.Equal(t, time.March, ts.Month())

	_, ok = ParseTimestamp("2024-03-01T10:15:30Z")
	assert.True(t, ok)

	_, ok = ParseTimestamp("yesterday")
	assert.False(t, ok)

	s := &Session{CreatedAt: "2024-03-01T10:15:30"}
	created, ok := s.Created()
	require.True(t, ok)
	assert.Equal(t, 10, created.Hour())
}

func TestCourse_IsVisible(t *testing.T) {
	hidden := false
	assert.True(t, (&Course{}).IsVisible())
	assert.False(t, (&Course{Visible: &hidden}).IsVisible())
}
