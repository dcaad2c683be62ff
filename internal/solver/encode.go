// Package solver talks to the remote scheduling service: it encodes busy
// intervals and the course query into the request body and decodes the
// candidate schedules it returns.
package solver

import (
	"errors"
	"strconv"
	"strings"

	"schedgen/internal/model"
	"schedgen/internal/timeline"
)

// DefaultToken stands for "no constraint, the whole week is available".
const DefaultToken = "default"

// ErrEmptyQuery reports a whitespace-only course query. No request is sent.
var ErrEmptyQuery = errors.New("solver: course query is empty")

// FormatIntervals renders set as "start,end" pairs joined by ";", or
// DefaultToken when set is empty. set is expected to be wrapped already.
func FormatIntervals(set []model.Interval) string {
	if len(set) == 0 {
		return DefaultToken
	}
	var b strings.Builder
	for i, iv := range set {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Itoa(iv.Start))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(iv.End))
	}
	return b.String()
}

// Encode builds the request body for a selected interval set and a free-text
// course query. Intervals before the week origin are folded to its end first.
func Encode(set []model.Interval, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	return FormatIntervals(timeline.Wrap(set)) + " " + query, nil
}
