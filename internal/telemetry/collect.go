package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrSourceNotFound is returned by CollectFile when the CSV does not exist.
var ErrSourceNotFound = errors.New("telemetry source not found")

// Collect reads header-keyed CSV telemetry from r and returns normalised
// events in file order. Unknown columns are ignored; missing columns take the
// same defaults as empty cells.
func Collect(r io.Reader) ([]Event, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	events := []Event{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(events)+2, err)
		}

		events = append(events, Normalize(Event{
			Timestamp:   field(row, "timestamp"),
			Source:      field(row, "source"),
			IPAddress:   field(row, "ip_address"),
			EventType:   field(row, "event_type"),
			Severity:    field(row, "severity"),
			Description: field(row, "description"),
			Region:      field(row, "region"),
		}))
	}
	return events, nil
}

// CollectFile loads telemetry from the CSV file at path.
func CollectFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("open telemetry csv: %w", err)
	}
	defer f.Close()

	events, err := Collect(f)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", path, err)
	}
	return events, nil
}
