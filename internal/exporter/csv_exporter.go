package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"userhub/internal/users"
)

// SchemaVersion identifies the CSV export format version.
// This version should be incremented when adding new columns or changing the format.
const SchemaVersion = "1"

// csvColumns defines the column order for export. Password material is
// never included.
var csvColumns = []string{
	"schemaVersion",
	"userId",
	"email",
	"firstName",
	"lastName",
	"provider",
	"isDeleted",
	"deletedAt",
	"createdAt",
	"updatedAt",
}

// CSVExporter exports user records to CSV format.
type CSVExporter struct{}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Export writes user records to the given writer in CSV format.
func (e *CSVExporter) Export(w io.Writer, records []users.User) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, user := range records {
		if err := writer.Write(e.userToRow(user)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return writer.Error()
}

// userToRow converts a user to a CSV row following the column order.
func (e *CSVExporter) userToRow(user users.User) []string {
	row := make([]string, len(csvColumns))

	row[0] = SchemaVersion
	row[1] = user.ID.String()
	row[2] = user.Email
	row[3] = user.FirstName
	row[4] = user.LastName
	row[5] = string(user.Provider)
	row[6] = strconv.FormatBool(user.IsDeleted)
	row[7] = formatOptionalTime(user.DeletedAt)
	row[8] = formatTime(user.CreatedAt)
	row[9] = formatTime(user.UpdatedAt)

	return row
}

// formatOptionalTime formats an optional time pointer to RFC3339 string.
func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.Format(time.RFC3339)
}

// formatTime formats a time to RFC3339 string.
func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format(time.RFC3339)
}
