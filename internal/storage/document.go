// Package storage provides the listen store and the services layered on it.
//
// This package handles the single JSON document (jsondb-backed) holding:
//   - User accounts and authentication
//   - Listen records (one per song play)
//   - Sequence counters for id allocation
//
// All aggregates are recomputed per query; there are no rollups.
package storage

import (
	"path/filepath"

	"github.com/maruel/musicmark/internal/jsondb"
)

// Role is a user's access level.
type Role string

const (
	// RoleUser is a regular account that can record and query its own listens.
	RoleUser Role = "user"
	// RoleAdmin can additionally manage user accounts.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a system user (public fields only).
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Created  int64  `json:"created_at"`
}

// UserRecord is the persisted form of a user. The password hash never
// leaves this type; lookups return the embedded User.
type UserRecord struct {
	User
	PasswordHash string `json:"password_hash"`
}

// Clone returns a copy of the record.
func (u *UserRecord) Clone() *UserRecord {
	c := *u
	return &c
}

// Listen is one recorded play event attributed to a user at a point in
// time. Immutable once created except for deletion. Optional fields use
// the empty string (or 0 for DurationSec) as the single absent
// representation; ingestion normalizes before the record is built.
type Listen struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Title       string `json:"title"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	Source      string `json:"source,omitempty"`
	StartedAt   int64  `json:"started_at"`
	DurationSec int64  `json:"duration_sec,omitempty"`
	ExternalID  string `json:"external_id,omitempty"`
	Created     int64  `json:"created_at"`
}

// Clone returns a copy of the listen.
func (l *Listen) Clone() *Listen {
	c := *l
	return &c
}

// Sequences holds the monotonic id counters. Counters only grow and ids
// are never reused, even across deletions.
type Sequences struct {
	Users   int64 `json:"users"`
	Listens int64 `json:"listens"`
}

// Document is the authoritative on-disk state. It is persisted as a whole
// on every mutation. Schema evolution must be additive: new optional
// fields only, existing names keep their semantics.
type Document struct {
	Users   []*UserRecord `json:"users"`
	Listens []*Listen     `json:"listens"`
	Seq     Sequences     `json:"seq"`
}

// Clone deep-copies the document so mutations never alias rows visible
// through earlier snapshots.
func (d *Document) Clone() *Document {
	c := &Document{
		Users:   make([]*UserRecord, len(d.Users)),
		Listens: make([]*Listen, len(d.Listens)),
		Seq:     d.Seq,
	}
	for i, u := range d.Users {
		c.Users[i] = u.Clone()
	}
	for i, l := range d.Listens {
		c.Listens[i] = l.Clone()
	}
	return c
}

// Store is the document store shared by all services.
type Store = jsondb.Store[*Document]

// Open opens (or initializes) the document store at dataDir/db.json.
func Open(dataDir string) (*Store, error) {
	return jsondb.Open(filepath.Join(dataDir, "db.json"), func() *Document {
		return &Document{Users: []*UserRecord{}, Listens: []*Listen{}}
	})
}
