package model

import (
	"encoding/json"
	"strings"
)

// FanStatus is a user's declared engagement with a league. The zero value
// is NotAFan.
type FanStatus int

const (
	NotAFan FanStatus = iota
	Fan
	SuperFan
)

// Display strings as stored and shown to users.
const (
	notAFanLabel  = "Not a Fan"
	fanLabel      = "Fan"
	superFanLabel = "Super Fan"
)

// ParseFanStatus maps a status string to a FanStatus. Matching ignores case,
// spaces and underscores, so "Super Fan", "SuperFan" and "super_fan" are
// equivalent. Anything unrecognized is NotAFan.
func ParseFanStatus(s string) FanStatus {
	key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(s))
	switch key {
	case "fan":
		return Fan
	case "superfan":
		return SuperFan
	default:
		return NotAFan
	}
}

func (f FanStatus) String() string {
	switch f {
	case Fan:
		return fanLabel
	case SuperFan:
		return superFanLabel
	default:
		return notAFanLabel
	}
}

// Eligible reports whether transactions in the league can earn points.
func (f FanStatus) Eligible() bool { return f == Fan || f == SuperFan }

// Multiplier is the fan-status weight: Fan 1, SuperFan 2, otherwise 0.
func (f FanStatus) Multiplier() int64 {
	switch f {
	case Fan:
		return 1
	case SuperFan:
		return 2
	default:
		return 0
	}
}

func (f FanStatus) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FanStatus) UnmarshalText(b []byte) error {
	*f = ParseFanStatus(string(b))
	return nil
}

// UserProfile maps each league to the user's fan status. A league missing
// from the profile is ineligible.
type UserProfile map[League]FanStatus

// ParseProfile builds a profile from raw league -> status strings. Unknown
// leagues are skipped and unknown statuses become NotAFan.
func ParseProfile(raw map[string]string) UserProfile {
	p := make(UserProfile, len(raw))
	for league, status := range raw {
		l, ok := ParseLeague(league)
		if !ok {
			continue
		}
		p[l] = ParseFanStatus(status)
	}
	return p
}

// Status returns the fan status for l and whether the profile has l.
func (p UserProfile) Status(l League) (FanStatus, bool) {
	s, ok := p[l]
	return s, ok
}

// Eligible reports whether the user is at least a Fan of one league.
func (p UserProfile) Eligible() bool {
	for _, s := range p {
		if s.Eligible() {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts {"NBA": "Super Fan", ...} and applies ParseProfile
// rules, so a bad status string never fails decoding.
func (p *UserProfile) UnmarshalJSON(b []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = ParseProfile(raw)
	return nil
}
