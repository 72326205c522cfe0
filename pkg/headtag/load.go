package headtag

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/headsync/internal/errors"
)

// tableFile is the YAML document shape of a rule table.
//
//	replace: false
//	rules:
//	  - type: link
//	    requireAll: [rel, href]
//	    key:
//	      - when: {rel: stylesheet}
//	        attr: href
//	      - attr: rel
//	        fold: true
type tableFile struct {
	// Replace discards the default table instead of merging over it.
	Replace bool   `yaml:"replace,omitempty"`
	Rules   []Rule `yaml:"rules"`
}

// LoadTable reads a YAML rule table. Rules are merged over DefaultTable
// unless the document sets replace: true.
func LoadTable(r io.Reader) (*Table, error) {
	var file tableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, errors.New("E200").Wrap(err).
			WithSuggestion("Check the rule table against the documented YAML shape")
	}

	if file.Replace {
		return NewTable(file.Rules...)
	}
	return DefaultTable().With(file.Rules...)
}

// LoadTableFile reads a YAML rule table from path.
func LoadTableFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E200").WithDetail(path).Wrap(err)
	}
	return LoadTable(bytes.NewReader(data))
}

// WriteYAML writes t in the format LoadTable reads, with replace: true so
// the output round-trips exactly.
func (t *Table) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tableFile{Replace: true, Rules: t.rules}); err != nil {
		return err
	}
	return enc.Close()
}
