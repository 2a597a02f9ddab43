package dto

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/maruel/musicmark/internal/storage"
)

// Validatable is implemented by request types that can validate their
// fields. The Wrap functions in the server package use this interface as a
// type constraint so every request type provides validation.
type Validatable interface {
	Validate() error
}

// EpochTime is a point in time as integer epoch seconds. It unmarshals
// from a JSON number (fractional seconds floored), a numeric string, or an
// RFC 3339 timestamp, so scrobblers can send whichever they have.
type EpochTime int64

// UnmarshalJSON implements json.Unmarshaler.
func (e *EpochTime) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*e = EpochTime(int64(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*e = EpochTime(v)
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return BadRequest("started_at cannot be parsed").Wrap(err)
	}
	*e = EpochTime(t.Unix())
	return nil
}

// --- Scrobbling API (Basic auth) ---

// PingRequest checks credentials.
type PingRequest struct{}

// Validate is a no-op for PingRequest.
func (r *PingRequest) Validate() error {
	return nil
}

// PingResponse identifies the authenticated user.
type PingResponse struct {
	OK   bool          `json:"ok"`
	User *storage.User `json:"user"`
}

// CreateListenRequest is a request to record a play event.
type CreateListenRequest struct {
	Title       string    `json:"title"`
	Artist      string    `json:"artist,omitempty"`
	Album       string    `json:"album,omitempty"`
	Source      string    `json:"source,omitempty"`
	StartedAt   EpochTime `json:"started_at"`
	DurationSec int64     `json:"duration_sec,omitempty"`
	ExternalID  string    `json:"external_id,omitempty"`
}

// Validate validates the create listen request fields.
func (r *CreateListenRequest) Validate() error {
	if r.Title == "" {
		return MissingField("title")
	}
	if r.StartedAt == 0 {
		return MissingField("started_at")
	}
	if r.DurationSec < 0 {
		return BadRequest("duration_sec must be a positive integer")
	}
	return nil
}

// CreateListenResponse reports the stored (or matched) listen id.
type CreateListenResponse struct {
	OK        bool  `json:"ok"`
	ID        int64 `json:"id"`
	Duplicate bool  `json:"duplicate"`
}

// ListListensRequest is a paginated listen query.
type ListListensRequest struct {
	Limit int `query:"limit"`
	Page  int `query:"page"`
}

// Validate is a no-op; out-of-range values are clamped by the handler.
func (r *ListListensRequest) Validate() error {
	return nil
}

// ListListensResponse is one page of listens, newest first.
type ListListensResponse struct {
	OK    bool              `json:"ok"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
	Total int               `json:"total"`
	Items []*storage.Listen `json:"items"`
}

// DeleteListensRequest removes listens owned by the caller.
type DeleteListensRequest struct {
	IDs []int64 `json:"ids"`
}

// Validate validates the delete listens request fields.
func (r *DeleteListensRequest) Validate() error {
	if len(r.IDs) == 0 {
		return MissingField("ids")
	}
	return nil
}

// DeleteListensResponse reports how many rows were actually removed.
type DeleteListensResponse struct {
	OK      bool `json:"ok"`
	Removed int  `json:"removed"`
}

// StatsRequest asks for the caller's aggregate statistics.
type StatsRequest struct{}

// Validate is a no-op for StatsRequest.
func (r *StatsRequest) Validate() error {
	return nil
}

// StatsResponse wraps the aggregate view of the caller's history.
type StatsResponse struct {
	OK bool `json:"ok"`
	*storage.UserStats
}

// TopSongsRequest asks for a top-song ranking.
type TopSongsRequest struct {
	Range string `query:"range"`
	Limit int    `query:"limit"`
}

// Validate validates the top songs request fields.
func (r *TopSongsRequest) Validate() error {
	if r.Range != "" && !storage.Range(r.Range).Valid() {
		return BadRequest("range must be \"all\" or \"week\"")
	}
	return nil
}

// TopSongsResponse is the ranked list.
type TopSongsResponse struct {
	OK    bool              `json:"ok"`
	Items []storage.TopSong `json:"items"`
}

// --- Auth (Bearer token) ---

// LoginRequest is a request to log in.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate validates the login request fields.
func (r *LoginRequest) Validate() error {
	if r.Username == "" {
		return MissingField("username")
	}
	if r.Password == "" {
		return MissingField("password")
	}
	return nil
}

// LoginResponse carries the bearer token and the public user.
type LoginResponse struct {
	OK    bool          `json:"ok"`
	Token string        `json:"token"`
	User  *storage.User `json:"user"`
}

// MeRequest is a request to get current user info.
type MeRequest struct{}

// Validate is a no-op for MeRequest.
func (r *MeRequest) Validate() error {
	return nil
}

// MeResponse carries the current user's public fields.
type MeResponse struct {
	OK   bool          `json:"ok"`
	User *storage.User `json:"user"`
}

// ChangePasswordRequest changes the caller's own password.
type ChangePasswordRequest struct {
	Password string `json:"password"`
}

// Validate validates the change password request fields.
func (r *ChangePasswordRequest) Validate() error {
	if len(r.Password) < 3 {
		return BadRequest("password must be at least 3 characters")
	}
	return nil
}

// OKResponse is a bare success acknowledgment.
type OKResponse struct {
	OK bool `json:"ok"`
}

// --- Admin ---

// ListUsersRequest lists all accounts.
type ListUsersRequest struct{}

// Validate is a no-op for ListUsersRequest.
func (r *ListUsersRequest) Validate() error {
	return nil
}

// ListUsersResponse lists all accounts, public fields only.
type ListUsersResponse struct {
	OK    bool            `json:"ok"`
	Users []*storage.User `json:"users"`
}

// CreateUserRequest creates an account.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Validate validates the create user request fields.
func (r *CreateUserRequest) Validate() error {
	if r.Username == "" {
		return MissingField("username")
	}
	if len(r.Password) < 3 {
		return BadRequest("password must be at least 3 characters")
	}
	if r.Role != "" && !storage.Role(r.Role).Valid() {
		return BadRequest("role must be \"user\" or \"admin\"")
	}
	return nil
}

// CreateUserResponse returns the created account.
type CreateUserResponse struct {
	OK   bool          `json:"ok"`
	User *storage.User `json:"user"`
}

// ResetPasswordRequest resets another account's password.
type ResetPasswordRequest struct {
	ID       string `path:"id" json:"-"`
	Password string `json:"password"`
}

// Validate validates the reset password request fields.
func (r *ResetPasswordRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	if len(r.Password) < 3 {
		return BadRequest("password must be at least 3 characters")
	}
	return nil
}

// --- Misc ---

// HealthRequest checks liveness.
type HealthRequest struct{}

// Validate is a no-op for HealthRequest.
func (r *HealthRequest) Validate() error {
	return nil
}

// HealthResponse reports liveness and build version.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Version string `json:"version"`
}
