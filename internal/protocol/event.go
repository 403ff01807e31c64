package protocol

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// EventKind classifies transport events.
type EventKind int

const (
	EventConnect EventKind = iota
	EventDisconnect
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "CONNECT"
	case EventDisconnect:
		return "DISCONNECT"
	case EventMessage:
		return "MESSAGE"
	}
	return fmt.Sprintf("EVENT(%d)", int(k))
}

// Event is what a transport hands to the control loop. Reply sends a message
// back to the connection the event came from; it may be nil for transports
// that cannot answer.
type Event struct {
	Kind    EventKind
	Conn    string
	Payload []byte
	Reply   func([]byte) error
}

// HandleEvent decodes and handles a message event and replies to its
// connection. Connect and disconnect events are only logged.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev Event) error {
	logger := log.WithField("conn", ev.Conn)
	switch ev.Kind {
	case EventConnect:
		logger.Info("protocol: client connected")
		return nil
	case EventDisconnect:
		logger.Info("protocol: client disconnected")
		return nil
	case EventMessage:
	default:
		return fmt.Errorf("unknown event kind %s", ev.Kind)
	}

	req, err := Decode(ev.Payload)
	if err != nil {
		return fmt.Errorf("conn %s: %w", ev.Conn, err)
	}
	logger.WithField("id", req.requestID()).Debug("protocol: request")

	resp, err := d.Handle(ctx, req)
	if err != nil {
		return fmt.Errorf("conn %s: id %d: %w", ev.Conn, req.requestID(), err)
	}
	if resp == nil {
		return nil
	}
	if ev.Reply == nil {
		logger.WithField("id", resp.responseID()).Debug("protocol: no reply path, response dropped")
		return nil
	}
	data, err := Encode(resp)
	if err != nil {
		return err
	}
	if err := ev.Reply(data); err != nil {
		return fmt.Errorf("conn %s: reply %d: %w", ev.Conn, resp.responseID(), err)
	}
	return nil
}
