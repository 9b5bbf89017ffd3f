package event

import (
	"encoding/json"
	"fmt"

	"emperror.dev/errors"
)

type DataInterface interface {
	String() string
	Type() EventType
}

func NewEvent(data DataInterface, target string, token string) (*Event, error) {
	jsonStr, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot marshal event data: %v", data)
	}
	return &Event{
		Type:   data.Type(),
		Target: target,
		Token:  token,
		Data:   jsonStr,
	}, nil
}

type Event struct {
	Type   EventType       `json:"type"`
	Source string          `json:"source"`
	Target string          `json:"target"`
	Token  string          `json:"token"`
	Data   json.RawMessage `json:"data"`
}

func (e *Event) String() string {
	return fmt.Sprintf("%s -> %s", e.Type, e.Target)

}

func (e *Event) GetType() EventType {
	return e.Type
}

func (e *Event) GetSource() string {
	return e.Source
}

func (e *Event) GetTarget() string {
	return e.Target
}

func (e *Event) GetToken() string {
	return e.Token
}

// Decode unmarshals the raw payload into the typed message for the event
// type. Unknown types decode as plain string messages.
func (e *Event) Decode() (DataInterface, error) {
	switch e.Type {
	case TypeSetVolume:
		var msg VolumeMessage
		if err := json.Unmarshal(e.Data, &msg); err != nil {
			return nil, errors.Wrapf(err, "cannot unmarshal volume event: %s", string(e.Data))
		}
		return &msg, nil
	case TypeNavigate:
		var msg NavigateMessage
		if err := json.Unmarshal(e.Data, &msg); err != nil {
			return nil, errors.Wrapf(err, "cannot unmarshal navigate event: %s", string(e.Data))
		}
		return &msg, nil
	case TypeResult:
		var msg ResultMessage
		if err := json.Unmarshal(e.Data, &msg); err != nil {
			return nil, errors.Wrapf(err, "cannot unmarshal result event: %s", string(e.Data))
		}
		return &msg, nil
	case TypeStateChanged, TypeAppState:
		var msg StateMessage
		if err := json.Unmarshal(e.Data, &msg); err != nil {
			return nil, errors.Wrapf(err, "cannot unmarshal state event: %s", string(e.Data))
		}
		return &msg, nil
	default:
		var msg string
		if err := json.Unmarshal(e.Data, &msg); err != nil {
			return nil, errors.Wrapf(err, "cannot unmarshal string message event: %s", string(e.Data))
		}
		return NewGenericStringMessage(e.Type, msg), nil
	}
}
