package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/maruel/musicmark/internal/jsondb"
)

// NewListen carries the attributes of an incoming play event. Callers are
// expected to have validated and normalized the payload: Title non-empty,
// StartedAt as integer epoch seconds, optional strings trimmed, absent
// values as "" (or 0 for DurationSec).
type NewListen struct {
	Title       string
	Artist      string
	Album       string
	Source      string
	StartedAt   int64
	DurationSec int64
	ExternalID  string
}

// dedupKey is the natural key deciding whether an incoming listen
// duplicates an existing one.
type dedupKey struct {
	UserID    int64
	Title     string
	Artist    string
	Album     string
	StartedAt int64
}

func keyOf(userID int64, title, artist, album string, startedAt int64) dedupKey {
	return dedupKey{UserID: userID, Title: title, Artist: artist, Album: album, StartedAt: startedAt}
}

// ListenService handles ingestion and queries over listen records.
type ListenService struct {
	store *Store
	now   func() time.Time
}

// NewListenService creates a listen service over the shared document store.
func NewListenService(store *Store) *ListenService {
	return &ListenService{store: store, now: time.Now}
}

// Insert records a play event for the user, deduplicating on
// (title, artist, album, started_at). A matching row resolves to the
// existing id with duplicate=true and no mutation; otherwise the next
// listens-sequence id is allocated and the document flushed.
//
// The linear scan over the user's listens stands in for a unique index.
// A per-user hash map keyed by the dedup tuple would be a drop-in
// optimization; it must not change observable behavior.
func (s *ListenService) Insert(userID int64, l NewListen) (id int64, duplicate bool, err error) {
	if userID <= 0 {
		return 0, false, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if l.Title == "" {
		return 0, false, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if l.DurationSec < 0 {
		return 0, false, fmt.Errorf("%w: duration_sec must be positive", ErrValidation)
	}
	key := keyOf(userID, l.Title, l.Artist, l.Album, l.StartedAt)
	err = s.store.Mutate(func(doc *Document) error {
		for _, row := range doc.Listens {
			if row.UserID == userID && keyOf(row.UserID, row.Title, row.Artist, row.Album, row.StartedAt) == key {
				id = row.ID
				duplicate = true
				return jsondb.ErrNoop
			}
		}
		doc.Seq.Listens++
		id = doc.Seq.Listens
		doc.Listens = append(doc.Listens, &Listen{
			ID:          id,
			UserID:      userID,
			Title:       l.Title,
			Artist:      l.Artist,
			Album:       l.Album,
			Source:      l.Source,
			StartedAt:   l.StartedAt,
			DurationSec: l.DurationSec,
			ExternalID:  l.ExternalID,
			Created:     s.now().Unix(),
		})
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return id, duplicate, nil
}

// List returns the user's listens ordered by started_at descending (id
// descending on ties, so repeated pagination over an unchanged dataset is
// stable), windowed by [offset, offset+limit). Out-of-range windows yield
// an empty slice.
func (s *ListenService) List(userID int64, limit, offset int) []*Listen {
	rows := s.ListAll(userID)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) || limit <= 0 {
		return []*Listen{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

// ListAll returns all of the user's listens in the same order as List,
// unbounded. Used for export-style full reads.
func (s *ListenService) ListAll(userID int64) []*Listen {
	doc := s.store.Snapshot()
	rows := make([]*Listen, 0)
	for _, l := range doc.Listens {
		if l.UserID == userID {
			rows = append(rows, l.Clone())
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StartedAt != rows[j].StartedAt {
			return rows[i].StartedAt > rows[j].StartedAt
		}
		return rows[i].ID > rows[j].ID
	})
	return rows
}

// Count returns the user's total row count. It always equals
// len(ListAll(userID)).
func (s *ListenService) Count(userID int64) int {
	n := 0
	for _, l := range s.store.Snapshot().Listens {
		if l.UserID == userID {
			n++
		}
	}
	return n
}

// Delete removes the user's listens whose ids appear in ids. Ids not owned
// by the user are silently skipped. The whole batch flushes once; the
// count actually removed is returned.
func (s *ListenService) Delete(userID int64, ids []int64) (removed int, err error) {
	if len(ids) == 0 {
		return 0, nil
	}
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	err = s.store.Mutate(func(doc *Document) error {
		kept := doc.Listens[:0]
		for _, l := range doc.Listens {
			if _, ok := want[l.ID]; ok && l.UserID == userID {
				removed++
				continue
			}
			kept = append(kept, l)
		}
		if removed == 0 {
			return jsondb.ErrNoop
		}
		doc.Listens = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
