// Package transient holds the per-visitor object that earlier processors fill
// with resolved CRM contact IDs. Contact IDs are keyed by contact link
// ("cid_1", "cid_2", ...) so later processors configured with the same link
// number can find the contact they should attach records to.
package transient

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

const contactPrefix = "cid_"

// ContactKey returns the transient key for a processor's contact link setting.
func ContactKey(link string) string {
	return contactPrefix + strings.TrimSpace(link)
}

// Transient is the session-scoped object shared by processors.
type Transient struct {
	ID       string            `json:"id"`
	Contacts map[string]int64  `json:"contacts,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// New returns an empty transient for the given ID.
func New(id string) *Transient {
	return &Transient{
		ID:       id,
		Contacts: make(map[string]int64),
	}
}

// ContactID returns the contact ID stored for a contact link. Zero counts as
// unset.
func (t *Transient) ContactID(link string) (int64, bool) {
	if t == nil || t.Contacts == nil {
		return 0, false
	}
	id, ok := t.Contacts[ContactKey(link)]
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

// SetContact stores the contact ID for a contact link.
func (t *Transient) SetContact(link string, id int64) {
	if t.Contacts == nil {
		t.Contacts = make(map[string]int64)
	}
	t.Contacts[ContactKey(link)] = id
}

func (t *Transient) encode() ([]byte, error) {
	return json.Marshal(t)
}

func decode(id string, data []byte) (*Transient, error) {
	out := New(id)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	out.ID = id
	if out.Contacts == nil {
		out.Contacts = make(map[string]int64)
	}
	return out, nil
}

// Store persists transients between requests. Get never returns a nil
// transient: an unknown ID yields an empty one.
type Store interface {
	Get(ctx context.Context, id string) (*Transient, error)
	Save(ctx context.Context, t *Transient, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Close() error
}
