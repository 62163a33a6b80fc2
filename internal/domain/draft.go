package domain

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// GlobalScope is the reserved draft scope holding values shared across steps.
const GlobalScope = "global"

// Draft is the persisted, partially completed state of one wizard instance
// for one owner. Data maps a scope (a step key or GlobalScope) to raw field
// values as they were submitted.
type Draft struct {
	ID          string
	Owner       string
	Step        string
	Data        map[string]map[string]any
	Attachments []string
	Modified    time.Time
}

func NewDraft(id, owner string) *Draft {
	return &Draft{
		ID:    id,
		Owner: owner,
		Data:  make(map[string]map[string]any),
	}
}

// InstanceID names a wizard instance by wizard type and anchor entity.
func InstanceID(wizard string, anchor int64) string {
	return fmt.Sprintf("%s-%d", wizard, anchor)
}

// Scope returns the stored values of a scope, or nil.
func (d *Draft) Scope(name string) map[string]any {
	return d.Data[name]
}

func (d *Draft) Set(scope, field string, raw any) {
	if d.Data == nil {
		d.Data = make(map[string]map[string]any)
	}
	if d.Data[scope] == nil {
		d.Data[scope] = make(map[string]any)
	}
	d.Data[scope][field] = raw
}

// Clone returns a deep enough copy for staging a commit.
func (d *Draft) Clone() *Draft {
	c := *d
	c.Data = make(map[string]map[string]any, len(d.Data))
	for scope, fields := range d.Data {
		m := make(map[string]any, len(fields))
		for k, v := range fields {
			m[k] = v
		}
		c.Data[scope] = m
	}
	c.Attachments = append([]string(nil), d.Attachments...)
	return &c
}

// Validate checks that every stored value is representable as JSON.
func (d *Draft) Validate() error {
	if d.ID == "" || d.Owner == "" {
		return fmt.Errorf("draft: id and owner are required")
	}
	for scope, fields := range d.Data {
		for name, v := range fields {
			if _, err := structpb.NewValue(v); err != nil {
				return fmt.Errorf("draft %q: %s.%s: %w", d.ID, scope, name, err)
			}
		}
	}
	return nil
}

// MarshalDraft encodes the whole draft record as a JSON object. Numbers in
// Data come back from UnmarshalDraft as float64.
func MarshalDraft(d *Draft) ([]byte, error) {
	data := make(map[string]any, len(d.Data))
	for scope, fields := range d.Data {
		data[scope] = map[string]any(fields)
	}
	attachments := make([]any, len(d.Attachments))
	for i, a := range d.Attachments {
		attachments[i] = a
	}
	s, err := structpb.NewStruct(map[string]any{
		"id":          d.ID,
		"owner":       d.Owner,
		"step":        d.Step,
		"data":        data,
		"attachments": attachments,
		"modified":    formatTimestamp(d.Modified),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding draft %q: %w", d.ID, err)
	}
	return protojson.Marshal(s)
}

func UnmarshalDraft(b []byte) (*Draft, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decoding draft: %w", err)
	}
	m := s.AsMap()
	id, _ := m["id"].(string)
	owner, _ := m["owner"].(string)
	d := NewDraft(id, owner)
	d.Step, _ = m["step"].(string)
	if data, ok := m["data"].(map[string]any); ok {
		for scope, v := range data {
			if fields, ok := v.(map[string]any); ok {
				d.Data[scope] = fields
			}
		}
	}
	if list, ok := m["attachments"].([]any); ok {
		for _, v := range list {
			if a, ok := v.(string); ok {
				d.Attachments = append(d.Attachments, a)
			}
		}
	}
	if ts, ok := m["modified"].(string); ok && ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("decoding draft %q: modified: %w", id, err)
		}
		d.Modified = t
	}
	return d, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
