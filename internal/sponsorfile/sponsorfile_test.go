package sponsorfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/fanspend/internal/domain/model"
)

const mixed = `
sponsors:
  - merchant_name: Nike
    league: NBA
  - merchant_name: "  "
    league: NFL
leagues:
  MLB: [Starbucks, Budweiser]
  NFL:
    - Pepsi
`

func TestParseKeepsDocumentOrder(t *testing.T) {
	got, err := Parse(strings.NewReader(mixed))
	require.NoError(t, err)

	want := []model.SponsorEntry{
		{MerchantName: "Nike", League: model.NBA},
		{MerchantName: "  ", League: model.NFL},
		{MerchantName: "Starbucks", League: model.MLB},
		{MerchantName: "Budweiser", League: model.MLB},
		{MerchantName: "Pepsi", League: model.NFL},
	}
	assert.Equal(t, want, got)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want error
	}{
		"empty input":       {doc: "", want: ErrEmpty},
		"empty list":        {doc: "sponsors: []\n", want: ErrEmpty},
		"unknown key":       {doc: "teams: [a]\n", want: ErrDecode},
		"leagues not a map": {doc: "leagues: [NBA]\n", want: ErrDecode},
		"names not a list":  {doc: "leagues:\n  NBA: {a: b}\n", want: ErrDecode},
		"broken yaml":       {doc: "sponsors: [\n", want: ErrDecode},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	entries := []model.SponsorEntry{
		{MerchantName: "Nike", League: model.NBA},
		{MerchantName: "Starbucks", League: model.MLB},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, entries))
	assert.Contains(t, buf.String(), "merchant_name: Nike")

	path := filepath.Join(t.TempDir(), "sponsors.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
