// Package model contains the value types passed between the sponsor index,
// the matcher, the scoring engine and the host layers.
package model

import (
	"sort"
	"strings"
	"sync"
)

// League identifies a sports league, e.g. "NBA".
type League string

// Built-in leagues.
const (
	MLB League = "MLB"
	NBA League = "NBA"
	NFL League = "NFL"
)

var (
	leaguesMu sync.RWMutex
	leagues   = map[League]struct{}{MLB: {}, NBA: {}, NFL: {}}
)

// RegisterLeague adds id to the set of known leagues and returns it in
// canonical form. Registering an existing league is a no-op.
func RegisterLeague(id string) League {
	l := League(strings.ToUpper(strings.TrimSpace(id)))
	if l == "" {
		return l
	}
	leaguesMu.Lock()
	leagues[l] = struct{}{}
	leaguesMu.Unlock()
	return l
}

// ParseLeague resolves s case-insensitively against the known leagues.
func ParseLeague(s string) (League, bool) {
	l := League(strings.ToUpper(strings.TrimSpace(s)))
	return l, l.Known()
}

// Known reports whether l has been registered.
func (l League) Known() bool {
	leaguesMu.RLock()
	_, ok := leagues[l]
	leaguesMu.RUnlock()
	return ok
}

func (l League) String() string { return string(l) }

// Leagues returns the known leagues in lexical order.
func Leagues() []League {
	leaguesMu.RLock()
	out := make([]League, 0, len(leagues))
	for l := range leagues {
		out = append(out, l)
	}
	leaguesMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
