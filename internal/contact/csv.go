package contact

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

var ErrNoNumberColumn = errors.New("contact csv: no \"number\" column in header")

// ReadCSV parses an uploaded contact file into rows ready for Partition.
//
// The first record is treated as the header. The phone-bearing column is the
// first one whose name equals "number" case-insensitively ("number",
// "Number", "NUMBER", ...). Every other column is passed through untouched
// in Row.Rest. Ragged records are tolerated; short rows just lack the
// trailing columns.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // accept ragged rows
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrNoNumberColumn
		}
		return nil, err
	}

	numberIdx := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "number") {
			numberIdx = i
			break
		}
	}
	if numberIdx < 0 {
		return nil, ErrNoNumberColumn
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if numberIdx >= len(rec) {
			// row too short to carry a number; keep it so Partition counts it
			rows = append(rows, Row{})
			continue
		}
		row := Row{Number: strings.TrimSpace(rec[numberIdx])}
		for i, name := range header {
			if i == numberIdx || i >= len(rec) {
				continue
			}
			key := strings.TrimSpace(name)
			if key == "" {
				continue
			}
			if row.Rest == nil {
				row.Rest = make(map[string]string)
			}
			row.Rest[key] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
