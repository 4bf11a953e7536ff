// Package rates fetches Central Bank of Russia currency quotes and renders
// them as chat text.
package rates

import (
	"context"
	"strings"
)

// Quote is a single currency rate as published by the source.
type Quote struct {
	Name string
	Rate string
}

// Source returns the current quotes in publication order.
type Source interface {
	Fetch(ctx context.Context) ([]Quote, error)
}

// Render joins quotes as "<name>-<rate>\n" lines in the given order.
// No quotes yields an empty string.
func Render(quotes []Quote) string {
	var b strings.Builder
	for _, q := range quotes {
		b.WriteString(q.Name)
		b.WriteByte('-')
		b.WriteString(q.Rate)
		b.WriteByte('\n')
	}
	return b.String()
}
