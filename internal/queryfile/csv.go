package queryfile

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
)

func readCSV(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "queryfile: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "queryfile: read csv")
	}
	return fromRows(rows)
}
