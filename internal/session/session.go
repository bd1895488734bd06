// Package session persists per-conversation USSD state keyed by the transport's session id.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrAlreadyExists = errors.New("session already exists")
)

// Flow discriminates which state machine owns a session's memory.
type Flow string

const (
	FlowRegistration Flow = "registration"
	FlowFarmer       Flow = "farmer"
	FlowWholesaler   Flow = "wholesaler"
)

// Session is the persisted conversation document. Memory holds the flow-specific
// record named by Flow; it is always read and written whole.
type Session struct {
	ID    string `json:"id"`
	Phone string `json:"phone_number"`
	Flow  Flow   `json:"flow"`
	// Consumed is the number of text trail segments already interpreted.
	Consumed  int             `json:"consumed"`
	Memory    json.RawMessage `json:"memory"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// New builds a session with memory encoded from initial.
func New(id, phone string, flow Flow, initial any) (*Session, error) {
	s := &Session{ID: id, Phone: phone}
	if err := s.Encode(flow, initial); err != nil {
		return nil, err
	}
	return s, nil
}

// Decode unmarshals the memory document into v.
func (s *Session) Decode(v any) error {
	if len(s.Memory) == 0 {
		return nil
	}
	if err := json.Unmarshal(s.Memory, v); err != nil {
		return fmt.Errorf("failed to decode %s session memory: %w", s.Flow, err)
	}
	return nil
}

// Encode replaces the memory document and its discriminant.
func (s *Session) Encode(flow Flow, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s session memory: %w", flow, err)
	}
	s.Flow = flow
	s.Memory = data
	return nil
}

// Store is the session persistence contract.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	// Create fails with ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, s *Session) error
	// Save replaces the whole document of an existing session.
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
