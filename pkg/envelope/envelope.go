package envelope

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ActionUserRegistered  = "user_registered"
	ActionUserLogin       = "user_login"
	ActionUserLogout      = "user_logout"
	ActionUserRoleChanged = "user_role_changed"
	ActionProfileUpdated  = "user_profile_updated"
)

// Envelope is the wire format of every auth event.
type Envelope struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	Service   string          `json:"service"`
	Username  string          `json:"username,omitempty"`
	Role      string          `json:"role,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"ts"`
}

func New(action, service, username, role string) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Action:    action,
		Service:   service,
		Username:  username,
		Role:      role,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewEvent is New with an attached JSON payload.
func NewEvent(action, service, username, role string, data any) (Envelope, error) {
	e := New(action, service, username, role)
	if data == nil {
		return e, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return e, err
	}
	e.Data = raw
	return e, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

func ParseData[T any](e Envelope) (T, error) {
	var v T
	err := json.Unmarshal(e.Data, &v)
	return v, err
}
