package catalog

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

type datasetItem struct {
	Embedding    []float32 `json:"embedding"`
	FreesoundURL string    `json:"freesound_url"`
}

// ReadDataset streams a JSON array of {embedding, freesound_url} objects,
// calling fn for each one with its position-derived ID. Items are decoded one
// at a time so exports larger than memory can be loaded. Returning an error
// from fn stops the read.
func ReadDataset(r io.Reader, fn func(Sound) error) (int, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("read dataset: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return 0, errors.New("read dataset: expected a JSON array")
	}

	n := 0
	for dec.More() {
		var item datasetItem
		if err := dec.Decode(&item); err != nil {
			return n, fmt.Errorf("read dataset item %d: %w", n+1, err)
		}
		n++
		if err := fn(Sound{ID: FormatID(n), Embedding: item.Embedding, FreesoundURL: item.FreesoundURL}); err != nil {
			return n, err
		}
	}

	if _, err := dec.Token(); err != nil {
		return n, fmt.Errorf("read dataset: %w", err)
	}
	return n, nil
}

// MissingURLIDs reads a CSV export with a header row and returns the IDs of
// rows whose freesound_url column is empty. Row numbering matches
// ReadDataset, so the IDs address the same vectors.
func MissingURLIDs(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := slices.Index(header, FieldFreesoundURL)
	if col < 0 {
		return nil, fmt.Errorf("csv has no %s column", FieldFreesoundURL)
	}

	var ids []string
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}
		if col >= len(rec) || rec[col] == "" {
			ids = append(ids, FormatID(row))
		}
	}
}
