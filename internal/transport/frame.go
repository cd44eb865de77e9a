package transport

import (
	"encoding/json"
	"net/http"

	"github.com/ganot/rpstage/internal/hub"
)

// Frame is one inbound websocket message.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseFrame decodes and validates a websocket message.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	if f.Type == "" {
		return Frame{}, errMissingType
	}
	return f, nil
}

func errorFrame(message string) []byte {
	data, _ := hub.Event{Type: hub.EventError, Payload: hub.ErrorView{Message: message}}.Encode()
	return data
}

// okResponse is the body of a successful administrative write.
type okResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
