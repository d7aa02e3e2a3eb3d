// Package sponsor builds the read-only lookup of sponsor merchant names used
// by the matcher. An Index is immutable once built and safe for concurrent
// readers.
package sponsor

import (
	"strings"

	"github.com/okian/fanspend/internal/domain/model"
)

// Candidate is one distinct sponsor in the index.
type Candidate struct {
	Name   string // display name as supplied
	Key    string // Normalize(Name)
	League model.League
}

// Index answers "which league is merchant X" in O(1) and exposes the
// candidates in first-seen order.
type Index struct {
	candidates []Candidate
	byKey      map[string]int
	dropped    int
	duplicates int
}

type builder struct {
	mode       Mode
	duplicates DuplicatePolicy
}

// Build indexes entries. In Permissive mode it never fails: rows with a
// blank name or an unknown league are dropped. In Strict mode the same rows
// produce a *ValidationError and a nil index.
func Build(entries []model.SponsorEntry, opts ...Option) (*Index, error) {
	b := builder{mode: Permissive, duplicates: LastWriteWins}
	for _, opt := range opts {
		opt(&b)
	}

	idx := &Index{
		candidates: make([]Candidate, 0, len(entries)),
		byKey:      make(map[string]int, len(entries)),
	}
	var bad []RowError

	for row, e := range entries {
		key := Normalize(e.MerchantName)
		league, known := model.ParseLeague(string(e.League))
		switch {
		case key == "":
			bad = append(bad, RowError{Row: row, Name: e.MerchantName, League: string(e.League), Reason: "empty merchant name"})
			continue
		case !known:
			bad = append(bad, RowError{Row: row, Name: e.MerchantName, League: string(e.League), Reason: "unknown league"})
			continue
		}

		c := Candidate{Name: strings.TrimSpace(e.MerchantName), Key: key, League: league}
		if i, dup := idx.byKey[key]; dup {
			idx.duplicates++
			if b.duplicates == LastWriteWins {
				idx.candidates[i] = c
			}
			continue
		}
		idx.byKey[key] = len(idx.candidates)
		idx.candidates = append(idx.candidates, c)
	}

	if len(bad) > 0 && b.mode == Strict {
		return nil, &ValidationError{Rows: bad}
	}
	idx.dropped = len(bad)
	return idx, nil
}

// Len returns the number of distinct sponsors. A nil index is empty.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.candidates)
}

// Candidate returns the i-th candidate in first-seen order.
func (x *Index) Candidate(i int) Candidate {
	return x.candidates[i]
}

// Lookup returns the candidate whose normalized name equals Normalize(name).
func (x *Index) Lookup(name string) (Candidate, bool) {
	if x == nil {
		return Candidate{}, false
	}
	i, ok := x.byKey[Normalize(name)]
	if !ok {
		return Candidate{}, false
	}
	return x.candidates[i], true
}

// LeagueOf returns the league of the sponsor named name.
func (x *Index) LeagueOf(name string) (model.League, bool) {
	c, ok := x.Lookup(name)
	return c.League, ok
}

// Entries returns the indexed sponsors as feed rows, in first-seen order.
func (x *Index) Entries() []model.SponsorEntry {
	out := make([]model.SponsorEntry, x.Len())
	for i := range out {
		out[i] = model.SponsorEntry{MerchantName: x.candidates[i].Name, League: x.candidates[i].League}
	}
	return out
}

// Dropped is the number of malformed rows skipped by a permissive build.
func (x *Index) Dropped() int {
	if x == nil {
		return 0
	}
	return x.dropped
}

// Duplicates is the number of rows folded into an earlier candidate.
func (x *Index) Duplicates() int {
	if x == nil {
		return 0
	}
	return x.duplicates
}
