package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Transaction is one aggregator row. Amount is signed currency units as
// delivered by the feed. Unrecognized JSON keys are kept in Extra and
// written back unchanged.
type Transaction struct {
	ID             string
	AccountID      string
	MerchantName   string
	Name           string
	Amount         float64
	Date           string // YYYY-MM-DD
	PaymentChannel string
	Currency       string

	Extra map[string]json.RawMessage
}

// JSON keys of the aggregator feed.
const (
	keyID             = "transaction_id"
	keyAccountID      = "account_id"
	keyMerchantName   = "merchant_name"
	keyName           = "name"
	keyAmount         = "amount"
	keyDate           = "date"
	keyPaymentChannel = "payment_channel"
	keyCurrency       = "iso_currency_code"
)

// Fields returns the transaction as a flat JSON object, passthrough keys
// included. A known key that arrived as null or another non-string value
// is written back as it arrived.
func (t Transaction) Fields() map[string]any {
	out := make(map[string]any, len(t.Extra)+8)
	for k, v := range t.Extra {
		out[k] = v
	}
	setOrKeep(out, keyID, t.ID)
	setOrKeep(out, keyMerchantName, t.MerchantName)
	if _, raw := out[keyAmount]; !raw || t.Amount != 0 {
		out[keyAmount] = finiteOrZero(t.Amount)
	}
	setOrKeep(out, keyDate, t.Date)
	setIf(out, keyAccountID, t.AccountID)
	setIf(out, keyName, t.Name)
	setIf(out, keyPaymentChannel, t.PaymentChannel)
	setIf(out, keyCurrency, t.Currency)
	return out
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Fields())
}

// UnmarshalJSON is lenient: a missing or non-numeric amount decodes to 0,
// and string fields of the wrong type decode to "". Values that did not
// decode stay in Extra under their own key.
func (t *Transaction) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*t = Transaction{}

	take := func(key string, dst *string) {
		var s *string
		if v, ok := raw[key]; ok && json.Unmarshal(v, &s) == nil && s != nil {
			*dst = *s
			delete(raw, key)
		}
	}
	take(keyID, &t.ID)
	take(keyAccountID, &t.AccountID)
	take(keyMerchantName, &t.MerchantName)
	take(keyName, &t.Name)
	take(keyDate, &t.Date)
	take(keyPaymentChannel, &t.PaymentChannel)
	take(keyCurrency, &t.Currency)

	if v, ok := raw[keyAmount]; ok {
		if f, ok := parseAmount(v); ok {
			t.Amount = f
			delete(raw, keyAmount)
		}
	}
	if len(raw) > 0 {
		t.Extra = raw
	}
	return nil
}

// ParseAmount decodes a JSON number or numeric string. Anything else,
// including values that overflow to infinity, yields 0.
func ParseAmount(v json.RawMessage) float64 {
	f, _ := parseAmount(v)
	return f
}

func parseAmount(v json.RawMessage) (float64, bool) {
	var n *json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, false
		}
		trimmed := json.Number(strings.TrimSpace(s))
		n = &trimmed
	}
	if n == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, false
	}
	return finiteOrZero(f), true
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func setOrKeep(m map[string]any, key, val string) {
	if _, raw := m[key]; raw && val == "" {
		return
	}
	m[key] = val
}

func setIf(m map[string]any, key, val string) {
	if val != "" {
		m[key] = val
	}
}
