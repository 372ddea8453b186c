package audit

import (
	"bytes"
	"encoding/csv"
	"time"
)

var csvHeader = []string{"At", "Actor", "Action", "Entity", "Entity ID", "Organization", "Detail"}

// CSVExporter renders timeline rows as a CSV document.
type CSVExporter struct{}

// WriteCSV encodes the rows with a header line. Timestamps are UTC RFC 3339.
func (CSVExporter) WriteCSV(rows []TimelineRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true

	if err := writer.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			row.At.UTC().Format(time.RFC3339),
			row.Actor,
			row.Action,
			row.Entity,
			row.EntityID,
			row.Organization,
			row.Detail,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
