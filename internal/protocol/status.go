// Package protocol writes and reads the JSON-lines trace of wizard replays.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/inforequest/inforequest/internal/wizard"
)

type MessageType string

const (
	MsgStepRealized        MessageType = "step_realized"
	MsgNavigationCorrected MessageType = "navigation_corrected"
	MsgFinished            MessageType = "finished"
)

type StatusMessage struct {
	Type       MessageType         `json:"type"`
	Instance   string              `json:"instance"`
	Step       string              `json:"step,omitempty"`
	Index      int                 `json:"index"`
	Number     int                 `json:"number,omitempty"`
	Accessible bool                `json:"accessible,omitempty"`
	Valid      bool                `json:"valid,omitempty"`
	Errors     map[string][]string `json:"errors,omitempty"`
	Requested  string              `json:"requested,omitempty"`
	Redirect   string              `json:"redirect,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// StatusWriter is a wizard.StatusHandler emitting one JSON object per event.
type StatusWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

var _ wizard.StatusHandler = (*StatusWriter)(nil)

func NewStatusWriter(w io.Writer) *StatusWriter {
	return &StatusWriter{enc: json.NewEncoder(w), now: time.Now}
}

func (s *StatusWriter) OnStepRealized(instance string, r *wizard.Realized) {
	s.write(StatusMessage{
		Type:       MsgStepRealized,
		Instance:   instance,
		Step:       string(r.ID),
		Index:      r.Index,
		Number:     r.Number,
		Accessible: r.Accessible,
		Valid:      r.IsValid,
		Errors:     r.Errors,
	})
}

func (s *StatusWriter) OnNavigationCorrected(instance, requested string, to *wizard.Realized) {
	s.write(StatusMessage{
		Type:      MsgNavigationCorrected,
		Instance:  instance,
		Step:      string(to.ID),
		Index:     to.Index,
		Requested: requested,
	})
}

func (s *StatusWriter) OnFinished(instance, redirect string) {
	s.write(StatusMessage{Type: MsgFinished, Instance: instance, Redirect: redirect})
}

func (s *StatusWriter) write(msg StatusMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Timestamp = s.now()
	_ = s.enc.Encode(msg)
}

func ParseStatusStream(data []byte) ([]StatusMessage, error) {
	var msgs []StatusMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var msg StatusMessage
		if err := dec.Decode(&msg); err != nil {
			return msgs, fmt.Errorf("failed to decode status message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
