package storage

import (
	"fmt"
	"sort"
	"time"
)

// Range selects the time window for top-song rankings.
type Range string

const (
	// RangeAll covers the user's entire history.
	RangeAll Range = "all"
	// RangeWeek is a rolling 7x24h window measured from query time, not an
	// aligned calendar week.
	RangeWeek Range = "week"
)

// Valid reports whether the range is a known value.
func (r Range) Valid() bool {
	return r == RangeAll || r == RangeWeek
}

// DayStat aggregates one calendar day of listening.
type DayStat struct {
	Date         string `json:"date"`
	Count        int    `json:"count"`
	DurationSec  int64  `json:"duration_sec"`
	UniqueTitles int    `json:"unique_titles"`
}

// SourceStat counts listens per normalized source label.
type SourceStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// UserStats is the full aggregate view of a user's listening history.
type UserStats struct {
	TotalCount       int          `json:"total_count"`
	TotalDurationSec int64        `json:"total_duration_sec"`
	UniqueTitles     int          `json:"unique_titles"`
	Daily            []DayStat    `json:"daily"`
	Sources          []SourceStat `json:"sources"`
}

// TopSong is one entry of a top-song ranking.
type TopSong struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Count    int    `json:"count"`
	LastPlay int64  `json:"last_play"`
}

// songKey groups listens of the same song: case-sensitive exact match on
// the (title, artist, album) tuple.
type songKey struct {
	Title  string
	Artist string
	Album  string
}

// StatsService computes aggregates from full scans of the snapshot. It is
// read-only and recomputes on every call; nothing is cached.
type StatsService struct {
	store *Store
	now   func() time.Time
}

// NewStatsService creates a stats service over the shared document store.
func NewStatsService(store *Store) *StatsService {
	return &StatsService{store: store, now: time.Now}
}

// Stats aggregates the user's history: totals, distinct songs, per-day
// buckets sorted by date ascending and source counts sorted descending.
// Days are bucketed by the UTC calendar date of started_at, so aggregate
// boundaries do not depend on the server's local timezone.
func (s *StatsService) Stats(userID int64) *UserStats {
	stats := &UserStats{Daily: []DayStat{}, Sources: []SourceStat{}}
	type dayAgg struct {
		count    int
		duration int64
		titles   map[songKey]struct{}
	}
	byDay := map[string]*dayAgg{}
	bySource := map[string]int{}
	titles := map[songKey]struct{}{}

	for _, l := range s.store.Snapshot().Listens {
		if l.UserID != userID {
			continue
		}
		stats.TotalCount++
		stats.TotalDurationSec += l.DurationSec
		key := songKey{Title: l.Title, Artist: l.Artist, Album: l.Album}
		titles[key] = struct{}{}

		date := time.Unix(l.StartedAt, 0).UTC().Format("2006-01-02")
		agg := byDay[date]
		if agg == nil {
			agg = &dayAgg{titles: map[songKey]struct{}{}}
			byDay[date] = agg
		}
		agg.count++
		agg.duration += l.DurationSec
		agg.titles[key] = struct{}{}

		src := l.Source
		if src == "" {
			src = "unknown"
		}
		bySource[src]++
	}

	stats.UniqueTitles = len(titles)
	for date, agg := range byDay {
		stats.Daily = append(stats.Daily, DayStat{
			Date:         date,
			Count:        agg.count,
			DurationSec:  agg.duration,
			UniqueTitles: len(agg.titles),
		})
	}
	sort.Slice(stats.Daily, func(i, j int) bool { return stats.Daily[i].Date < stats.Daily[j].Date })
	for name, count := range bySource {
		stats.Sources = append(stats.Sources, SourceStat{Name: name, Count: count})
	}
	sort.Slice(stats.Sources, func(i, j int) bool {
		if stats.Sources[i].Count != stats.Sources[j].Count {
			return stats.Sources[i].Count > stats.Sources[j].Count
		}
		return stats.Sources[i].Name < stats.Sources[j].Name
	})
	return stats
}

// TopSongs ranks the user's songs by play count descending, ties broken by
// most recent play, truncated to limit (default 50 when limit <= 0).
func (s *StatsService) TopSongs(userID int64, rng Range, limit int) ([]TopSong, error) {
	if rng == "" {
		rng = RangeAll
	}
	if !rng.Valid() {
		return nil, fmt.Errorf("%w: unknown range %q", ErrValidation, rng)
	}
	if limit <= 0 {
		limit = 50
	}
	var since int64
	if rng == RangeWeek {
		since = s.now().Add(-7 * 24 * time.Hour).Unix()
	}

	bySong := map[songKey]*TopSong{}
	for _, l := range s.store.Snapshot().Listens {
		if l.UserID != userID || l.StartedAt < since {
			continue
		}
		key := songKey{Title: l.Title, Artist: l.Artist, Album: l.Album}
		song := bySong[key]
		if song == nil {
			song = &TopSong{Title: l.Title, Artist: l.Artist, Album: l.Album}
			bySong[key] = song
		}
		song.Count++
		if l.StartedAt > song.LastPlay {
			song.LastPlay = l.StartedAt
		}
	}

	ranked := make([]TopSong, 0, len(bySong))
	for _, song := range bySong {
		ranked = append(ranked, *song)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].LastPlay > ranked[j].LastPlay
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
