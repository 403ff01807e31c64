package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrParse     = errors.New("malformed message")
	ErrUnknownID = errors.New("unknown message id")
)

// Decode parses an inbound message into its request variant.
func Decode(data []byte) (Request, error) {
	var head struct {
		ID *int `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if head.ID == nil {
		return nil, fmt.Errorf("%w: no id", ErrParse)
	}

	switch *head.ID {
	case IDRequestManual:
		return RequestManual{}, nil
	case IDRequestSchedule:
		return RequestSchedule{}, nil
	case IDRequestSettings:
		return RequestSettings{}, nil
	case IDRestart:
		return Restart{}, nil
	case IDFactoryReset:
		return FactoryReset{}, nil
	case IDUpdateManual:
		return decodeAs[UpdateManual](*head.ID, data)
	case IDSaveSchedule:
		return decodeAs[SaveSchedule](*head.ID, data)
	case IDSaveSettings:
		return decodeAs[SaveSettings](*head.ID, data)
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownID, *head.ID)
}

func decodeAs[T Request](id int, data []byte) (Request, error) {
	var r T
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: id %d: %v", ErrParse, id, err)
	}
	return r, nil
}

// Encode serializes a response with its id.
func Encode(r Response) ([]byte, error) {
	type id struct {
		ID int `json:"id"`
	}
	switch v := r.(type) {
	case ManualView:
		return json.Marshal(struct {
			id
			ManualView
		}{id{v.responseID()}, v})
	case ScheduleView:
		return json.Marshal(struct {
			id
			ScheduleView
		}{id{v.responseID()}, v})
	case SettingsView:
		return json.Marshal(struct {
			id
			SettingsView
		}{id{v.responseID()}, v})
	}
	return nil, fmt.Errorf("encode: unsupported response %T", r)
}
