package event

import (
	"encoding/json"
	"fmt"
)

func NewGenericStringMessage(t EventType, msg string) DataInterface {
	return &GenericStringMessage{
		type_: t,
		msg:   msg,
	}
}

type GenericStringMessage struct {
	type_ EventType
	msg   string
}

func (m *GenericStringMessage) String() string {
	return m.msg
}
func (m *GenericStringMessage) Type() EventType {
	return m.type_
}

// marshals as a bare JSON string so the default Decode branch round-trips it
func (m *GenericStringMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.msg)
}

var _ DataInterface = (*GenericStringMessage)(nil)

// VolumeMessage carries the acknowledged-only volume operation.
type VolumeMessage struct {
	Volume int `json:"volume"`
}

func (m *VolumeMessage) String() string {
	return fmt.Sprintf("volume %d", m.Volume)
}
func (m *VolumeMessage) Type() EventType {
	return TypeSetVolume
}

var _ DataInterface = (*VolumeMessage)(nil)

type NavigateMessage struct {
	URL string `json:"url"`
}

func (m *NavigateMessage) String() string {
	return m.URL
}
func (m *NavigateMessage) Type() EventType {
	return TypeNavigate
}

var _ DataInterface = (*NavigateMessage)(nil)

// ResultMessage is the outcome envelope for transport operations sent over
// the websocket. Failures travel as data, never as closed connections.
type ResultMessage struct {
	Success         bool   `json:"success"`
	Error           bool   `json:"error,omitempty"`
	Message         string `json:"message,omitempty"`
	MatchedSelector string `json:"matchedSelector,omitempty"`
}

func (m *ResultMessage) String() string {
	if m.Success {
		return fmt.Sprintf("ok: %s", m.Message)
	}
	return fmt.Sprintf("failed: %s", m.Message)
}
func (m *ResultMessage) Type() EventType {
	return TypeResult
}

var _ DataInterface = (*ResultMessage)(nil)

// StateMessage is pushed to every connected control surface whenever a
// persisted preference flips.
type StateMessage struct {
	IsDarkMode   bool `json:"isDarkMode"`
	IsMiniPlayer bool `json:"isMiniPlayer"`
}

func (m *StateMessage) String() string {
	return fmt.Sprintf("dark=%v mini=%v", m.IsDarkMode, m.IsMiniPlayer)
}
func (m *StateMessage) Type() EventType {
	return TypeStateChanged
}

var _ DataInterface = (*StateMessage)(nil)
