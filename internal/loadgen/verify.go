package loadgen

import "fmt"

// Verify checks a fan-spend response: every listed row earned points, the
// per-league totals add up to the total, and the total is the sum of the
// rows.
func Verify(fs FanSpend) error {
	var rows, leagues int64
	for _, r := range fs.Transactions {
		if r.Points <= 0 {
			return fmt.Errorf("%w: %s listed with %d points", ErrInvariant, r.TransactionID, r.Points)
		}
		if r.Multiplier < 0 {
			return fmt.Errorf("%w: %s has multiplier %v", ErrInvariant, r.TransactionID, r.Multiplier)
		}
		if r.MatchedSponsor == "" || r.League == "" {
			return fmt.Errorf("%w: %s scored without a sponsor", ErrInvariant, r.TransactionID)
		}
		rows += r.Points
	}
	for _, p := range fs.Summary.ByLeague {
		leagues += p
	}

	if leagues != fs.Summary.Total {
		return fmt.Errorf("%w: byLeague sums to %d, total is %d", ErrInvariant, leagues, fs.Summary.Total)
	}
	if rows != fs.Summary.Total {
		return fmt.Errorf("%w: rows sum to %d, total is %d", ErrInvariant, rows, fs.Summary.Total)
	}
	return nil
}

// VerifyLedger checks that the persisted ledger agrees with the live view.
func VerifyLedger(live FanSpend, ledger Summary) error {
	if ledger.Total != live.Summary.Total {
		return fmt.Errorf("%w: ledger total %d, live total %d", ErrInvariant, ledger.Total, live.Summary.Total)
	}
	for league, p := range live.Summary.ByLeague {
		if ledger.ByLeague[league] != p {
			return fmt.Errorf("%w: ledger %s=%d, live %s=%d", ErrInvariant, league, ledger.ByLeague[league], league, p)
		}
	}
	return nil
}
