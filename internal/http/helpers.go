package http

import (
	"net/http"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// sanitizeInput removes control characters other than tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseID reads the {id} path value. Anything but a positive integer is
// reported as not found.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// rawFields collects the transaction form fields from a parsed body.
func rawFields(p *RequestBodyParser) core.RawFields {
	return core.RawFields{
		Date:        p.Get("date"),
		Type:        p.Get("type"),
		Category:    p.Get("category"),
		Description: p.Get("description"),
		Amount:      p.Get("amount"),
	}
}
