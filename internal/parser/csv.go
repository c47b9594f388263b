package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"nidwatch/internal/models"
)

// ReadCSV reads a headered CSV file into a table. Columns whose values are
// all integers become int64, all numeric become float64; empty cells are
// null.
func ReadCSV(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) (*models.Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: csv has no header row", models.ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: csv header: %v", models.ErrMalformedInput, err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := models.NewTable(header...)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv: %v", models.ErrMalformedInput, err)
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			if v = strings.TrimSpace(v); v != "" {
				row[i] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}

	for i := range t.Columns {
		inferColumn(t, i)
	}
	return t, nil
}

func inferColumn(t *models.Table, idx int) {
	allInt, allFloat, seen := true, true, false
	for _, row := range t.Rows {
		s, ok := row[idx].(string)
		if !ok {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			allFloat = false
			break
		}
	}
	if !seen || !allFloat {
		return
	}
	for _, row := range t.Rows {
		s, ok := row[idx].(string)
		if !ok {
			continue
		}
		if allInt {
			n, _ := strconv.ParseInt(s, 10, 64)
			row[idx] = n
		} else {
			f, _ := strconv.ParseFloat(s, 64)
			row[idx] = f
		}
	}
}
