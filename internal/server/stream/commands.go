package stream

import (
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/levyledger/levyd/internal/events"
)

// command is the client request envelope.
type command struct {
	Command string      `json:"command"`
	ID      interface{} `json:"id,omitempty"`
	Streams []string    `json:"streams,omitempty"`
}

// response answers one command. Error fields are flat, mirroring the
// status/type convention of the JSON feeds this format descends from.
type response struct {
	Type         string      `json:"type"`
	ID           interface{} `json:"id,omitempty"`
	Status       string      `json:"status"`
	Result       interface{} `json:"result,omitempty"`
	Error        string      `json:"error,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// eventEnvelope wraps a bus event for delivery.
type eventEnvelope struct {
	Type  string       `json:"type"`
	Event events.Event `json:"event"`
}

func typeName(s events.Stream) string {
	switch s {
	case events.StreamSettlements:
		return "settlement"
	case events.StreamDistributions:
		return "distribution"
	case events.StreamAdmin:
		return "admin"
	default:
		return string(s)
	}
}

func parseStream(name string) (events.Stream, bool) {
	switch events.Stream(name) {
	case events.StreamSettlements:
		return events.StreamSettlements, true
	case events.StreamDistributions:
		return events.StreamDistributions, true
	case events.StreamAdmin:
		return events.StreamAdmin, true
	default:
		return "", false
	}
}

func (s *Server) handleCommand(c *connection, message []byte) {
	var cmd command
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.respondError(c, nil, "invalidJSON", err.Error())
		return
	}

	switch cmd.Command {
	case "ping":
		s.respond(c, response{Type: "response", ID: cmd.ID, Status: "success", Result: struct{}{}})
	case "subscribe":
		s.handleSubscribe(c, cmd, true)
	case "unsubscribe":
		s.handleSubscribe(c, cmd, false)
	case "":
		s.respondError(c, cmd.ID, "missingCommand", "missing command field")
	default:
		s.respondError(c, cmd.ID, "unknownCommand", "unknown command "+cmd.Command)
	}
}

func (s *Server) handleSubscribe(c *connection, cmd command, add bool) {
	if len(cmd.Streams) == 0 {
		s.respondError(c, cmd.ID, "missingStreams", "missing streams field")
		return
	}
	streams := make([]events.Stream, 0, len(cmd.Streams))
	for _, name := range cmd.Streams {
		stream, ok := parseStream(name)
		if !ok {
			s.respondError(c, cmd.ID, "invalidStream", "unknown stream "+name)
			return
		}
		streams = append(streams, stream)
	}

	c.mu.Lock()
	for _, stream := range streams {
		if add {
			c.subs[stream] = struct{}{}
		} else {
			delete(c.subs, stream)
		}
	}
	current := make([]string, 0, len(c.subs))
	for stream := range c.subs {
		current = append(current, string(stream))
	}
	c.mu.Unlock()
	sort.Strings(current)

	s.respond(c, response{
		Type:   "response",
		ID:     cmd.ID,
		Status: "success",
		Result: map[string]interface{}{"streams": current},
	})
}

func (s *Server) respond(c *connection, resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("marshal stream response", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		// A client too slow for its own command responses is done for.
		s.drop(c)
	}
}

func (s *Server) respondError(c *connection, id interface{}, code, message string) {
	s.respond(c, response{
		Type:         "response",
		ID:           id,
		Status:       "error",
		Error:        code,
		ErrorMessage: message,
	})
}
