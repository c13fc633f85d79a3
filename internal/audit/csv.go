package audit

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{"ID", "Action", "Timestamp", "User ID"}

// WriteCSV renders entries as the logs export.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		user := ""
		if e.UserID > 0 {
			user = strconv.FormatInt(e.UserID, 10)
		}
		row := []string{
			strconv.FormatInt(e.ID, 10),
			e.Action,
			e.Timestamp.UTC().Format(time.RFC3339),
			user,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
