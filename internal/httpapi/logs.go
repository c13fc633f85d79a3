package httpapi

import (
	"net/http"
	"strings"
	"time"

	"pokeswap.org/internal/audit"
	"pokeswap.org/internal/obs"
)

// parseBound accepts a date or an RFC 3339 timestamp. A date-only upper bound
// covers the whole day.
func parseBound(raw string, upper bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if d, err := time.Parse(dateLayout, raw); err == nil {
		if upper {
			d = d.Add(24 * time.Hour)
		}
		return d, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// exportLogs streams the audit entries within [startDate, endDate] as CSV.
func (a *API) exportLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseBound(q.Get("startDate"), false)
	if err != nil {
		badRequest(w, r, "startDate must be YYYY-MM-DD or RFC 3339")
		return
	}
	to, err := parseBound(q.Get("endDate"), true)
	if err != nil {
		badRequest(w, r, "endDate must be YYYY-MM-DD or RFC 3339")
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		badRequest(w, r, "endDate precedes startDate")
		return
	}
	entries, err := a.audit.Export(r.Context(), from, to)
	if err != nil {
		internalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="logs.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := audit.WriteCSV(w, entries); err != nil {
		obs.Logger().Error().Err(err).Msg("write logs csv")
	}
}
