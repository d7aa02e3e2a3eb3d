// Package sponsorfile reads sponsor feeds from YAML.
//
// Two shapes are accepted and may be combined in one document:
//
//	sponsors:
//	  - merchant_name: Nike
//	    league: NBA
//	leagues:
//	  MLB: [Starbucks, Budweiser]
//
// Rows keep document order: the sponsors list first, then each league of
// the leagues mapping in the order written. Rows are not validated here;
// that is sponsor.Build's job.
package sponsorfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/fanspend/internal/domain/model"
)

// Row is one sponsor in list form.
type Row struct {
	MerchantName string `yaml:"merchant_name"`
	League       string `yaml:"league"`
}

type document struct {
	Sponsors []Row     `yaml:"sponsors"`
	Leagues  yaml.Node `yaml:"leagues"`
}

// Read parses the file at path.
func Read(path string) ([]model.SponsorEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse decodes a sponsor document. Unknown top-level keys are rejected.
func Parse(r io.Reader) ([]model.SponsorEntry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	out := make([]model.SponsorEntry, 0, len(doc.Sponsors))
	for _, row := range doc.Sponsors {
		out = append(out, model.SponsorEntry{MerchantName: row.MerchantName, League: model.League(row.League)})
	}

	byLeague, err := leagueRows(&doc.Leagues)
	if err != nil {
		return nil, err
	}
	out = append(out, byLeague...)

	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// leagueRows walks the leagues mapping node pairwise so document order
// survives.
func leagueRows(n *yaml.Node) ([]model.SponsorEntry, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: leagues must be a mapping", ErrDecode, n.Line)
	}

	var out []model.SponsorEntry
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		var names []string
		if err := val.Decode(&names); err != nil {
			return nil, fmt.Errorf("%w: line %d: league %q: %w", ErrDecode, val.Line, key.Value, err)
		}
		for _, name := range names {
			out = append(out, model.SponsorEntry{MerchantName: name, League: model.League(key.Value)})
		}
	}
	return out, nil
}

// Encode writes entries in list form.
func Encode(w io.Writer, entries []model.SponsorEntry) error {
	doc := struct {
		Sponsors []Row `yaml:"sponsors"`
	}{Sponsors: make([]Row, len(entries))}
	for i, e := range entries {
		doc.Sponsors[i] = Row{MerchantName: e.MerchantName, League: string(e.League)}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
