package scoring

import "github.com/okian/fanspend/internal/domain/model"

// Summarize sums points overall and per league. The result does not depend
// on the order of scored.
func Summarize(scored []model.ScoredTransaction) model.Summary {
	s := model.Summary{ByLeague: make(map[model.League]int64)}
	for _, st := range scored {
		s.TotalPoints += st.Points
		s.ByLeague[st.League] += st.Points
	}
	return s
}
