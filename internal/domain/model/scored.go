package model

import "encoding/json"

// SponsorEntry is one row of the sponsor feed.
type SponsorEntry struct {
	MerchantName string `json:"merchant_name" yaml:"merchant_name"`
	League       League `json:"league" yaml:"league"`
}

// MatchResult is the outcome of matching one merchant name. Sponsor is
// empty when nothing cleared the threshold.
type MatchResult struct {
	Sponsor    string
	League     League
	Confidence float64
}

// Matched reports whether a sponsor was accepted.
func (m MatchResult) Matched() bool { return m.Sponsor != "" }

// ScoredTransaction is a transaction that earned points.
type ScoredTransaction struct {
	Transaction

	MatchedSponsor string
	League         League
	FanStatus      FanStatus
	Points         int64
	Multiplier     float64
	Confidence     float64
}

// JSON keys added on top of the transaction fields.
const (
	keyMatchedSponsor = "matched_sponsor"
	keySponsorLeague  = "sponsor_league"
	keyPoints         = "fanspend_points"
	keyMultiplier     = "fanspend_multiplier"
	keyFanStatus      = "fanspend_fan_status"
	keyConfidence     = "match_confidence"
)

func (s ScoredTransaction) MarshalJSON() ([]byte, error) {
	out := s.Transaction.Fields()
	out[keyMatchedSponsor] = s.MatchedSponsor
	out[keySponsorLeague] = s.League
	out[keyPoints] = s.Points
	out[keyMultiplier] = s.Multiplier
	out[keyFanStatus] = s.FanStatus.String()
	out[keyConfidence] = s.Confidence
	return json.Marshal(out)
}

func (s *ScoredTransaction) UnmarshalJSON(b []byte) error {
	var scored struct {
		MatchedSponsor string    `json:"matched_sponsor"`
		League         League    `json:"sponsor_league"`
		Points         int64     `json:"fanspend_points"`
		Multiplier     float64   `json:"fanspend_multiplier"`
		FanStatus      FanStatus `json:"fanspend_fan_status"`
		Confidence     float64   `json:"match_confidence"`
	}
	if err := json.Unmarshal(b, &scored); err != nil {
		return err
	}
	var tx Transaction
	if err := tx.UnmarshalJSON(b); err != nil {
		return err
	}
	for _, k := range []string{keyMatchedSponsor, keySponsorLeague, keyPoints, keyMultiplier, keyFanStatus, keyConfidence} {
		delete(tx.Extra, k)
	}
	if len(tx.Extra) == 0 {
		tx.Extra = nil
	}
	*s = ScoredTransaction{
		Transaction:    tx,
		MatchedSponsor: scored.MatchedSponsor,
		League:         scored.League,
		FanStatus:      scored.FanStatus,
		Points:         scored.Points,
		Multiplier:     scored.Multiplier,
		Confidence:     scored.Confidence,
	}
	return nil
}

// Summary aggregates points over scored transactions.
type Summary struct {
	TotalPoints int64            `json:"total"`
	ByLeague    map[League]int64 `json:"byLeague"`
}
