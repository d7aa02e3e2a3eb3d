package loadgen

import (
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Row is one synthetic aggregator transaction in the feed's wire shape.
type Row struct {
	TransactionID  string  `json:"transaction_id"`
	AccountID      string  `json:"account_id"`
	MerchantName   string  `json:"merchant_name"`
	Name           string  `json:"name"`
	Amount         float64 `json:"amount"`
	Date           string  `json:"date"`
	PaymentChannel string  `json:"payment_channel"`
	Currency       string  `json:"iso_currency_code"`
}

// Merchants mixes exact sponsor names, noisy card-statement variants and
// merchants that sponsor nothing.
var Merchants = []string{
	"Nike",
	"NIKE STORE #4411",
	"Pepsi",
	"PEPSICO BEVERAGES",
	"Starbucks",
	"STARBUCKS #1234",
	"Gatorade",
	"Budweiser",
	"State Farm",
	"Acme Hardware",
	"Corner Deli",
	"City Parking",
}

var channels = []string{"online", "in store", "other"}

// Generator produces reproducible synthetic rows.
type Generator struct {
	rng       *rand.Rand
	accountID string
	days      int
	now       func() time.Time
}

// NewGenerator seeds a generator. A zero seed uses the clock.
func NewGenerator(seed uint64, days int) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if days < 1 {
		days = 1
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	return &Generator{
		rng:       rng,
		accountID: "acc_" + strconv.FormatUint(rng.Uint64()%1_000_000, 10),
		days:      days,
		now:       time.Now,
	}
}

// Generate returns n rows, newest date first, as an aggregator delivers
// them. About one row in ten is a refund with a negative amount.
func (g *Generator) Generate(n int) []Row {
	today := g.now().UTC().Truncate(24 * time.Hour)
	rows := make([]Row, n)
	for i := range rows {
		merchant := Merchants[g.rng.IntN(len(Merchants))]
		amount := math.Round((1+g.rng.Float64()*199)*100) / 100
		if g.rng.IntN(10) == 0 {
			amount = -amount
		}
		rows[i] = Row{
			TransactionID:  uuid.NewString(),
			AccountID:      g.accountID,
			MerchantName:   merchant,
			Name:           merchant,
			Amount:         amount,
			Date:           today.AddDate(0, 0, -g.rng.IntN(g.days)).Format(time.DateOnly),
			PaymentChannel: channels[g.rng.IntN(len(channels))],
			Currency:       "USD",
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date > rows[j].Date })
	return rows
}

// Batches splits rows into chunks of at most size.
func Batches(rows []Row, size int) [][]Row {
	if size < 1 {
		size = len(rows)
	}
	var out [][]Row
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}
