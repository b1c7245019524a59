// Package export writes lead snapshots to flat file formats. It is a
// pure format converter: what goes in is exactly what the caller's
// visibility-filtered view already holds.
package export

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/nexocrm/leadview"
)

var csvHeader = []string{
	"id", "name", "email", "phone_number", "country",
	"status", "assigned_to", "desk", "created_at",
}

// WriteCSV serializes leads in snapshot order.
func WriteCSV(w io.Writer, leads []leadview.Lead) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range leads {
		record := []string{
			l.ID,
			l.Name,
			l.Email,
			l.PhoneNumber,
			l.Country,
			l.Status,
			l.AssignedTo,
			l.Desk,
			l.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
