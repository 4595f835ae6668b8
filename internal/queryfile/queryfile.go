// Package queryfile reads batches of meal descriptions from YAML, CSV, or
// XLSX files.
package queryfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Item is one meal description with an optional servings multiplier.
type Item struct {
	Query    string  `yaml:"query" json:"query"`
	Servings float64 `yaml:"servings,omitempty" json:"servings,omitempty"`
}

// UnmarshalYAML accepts either a plain string or a {query, servings} mapping.
func (it *Item) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		it.Query = node.Value
		return nil
	}
	type plain Item
	return node.Decode((*plain)(it))
}

// Read loads the items in path, choosing the parser by extension. Blank
// queries are dropped; a file with no queries is an error.
func Read(path string) ([]Item, error) {
	var (
		items []Item
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		items, err = readCSV(path)
	case ".xlsx":
		items, err = readXLSX(path)
	case ".yaml", ".yml", "":
		items, err = readYAML(path)
	default:
		return nil, eris.Errorf("queryfile: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	out := items[:0]
	for _, it := range items {
		it.Query = strings.TrimSpace(it.Query)
		if it.Query != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil, eris.Errorf("queryfile: %s contains no queries", path)
	}
	return out, nil
}

type yamlDoc struct {
	Queries []Item `yaml:"queries"`
}

// readYAML accepts a top-level list or a {queries: [...]} document.
func readYAML(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "queryfile: read %s", path)
	}

	var items []Item
	if err := yaml.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "queryfile: parse %s", path)
	}
	return doc.Queries, nil
}

// fromRows maps spreadsheet rows to items: column A is the query, column B
// the optional servings. A first row whose column A reads "query" is a header.
func fromRows(rows [][]string) ([]Item, error) {
	if len(rows) > 0 && len(rows[0]) > 0 && strings.EqualFold(strings.TrimSpace(rows[0][0]), "query") {
		rows = rows[1:]
	}

	items := make([]Item, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		it := Item{Query: row[0]}
		if len(row) > 1 {
			if s := strings.TrimSpace(row[1]); s != "" {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil || v < 0 {
					return nil, eris.Errorf("queryfile: row %d: invalid servings %q", i+1, s)
				}
				it.Servings = v
			}
		}
		items = append(items, it)
	}
	return items, nil
}
