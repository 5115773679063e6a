package engine

import (
	"context"
	"strings"

	"db-merge/internal/merge"
	"db-merge/internal/schema"
)

// Span is the line range, 1-based and inclusive, an action occupies in a
// rendered script.
type Span struct {
	Action    merge.Action
	StartLine int
	EndLine   int
}

// Rendered is a migration script ready for review.
type Rendered struct {
	Text  string
	Spans []Span
}

// Script renders actions into one script. Each action starts with a
// comment naming the change, followed by its validation warnings and its
// statements, each closed by the dialect terminator and batch separator.
func Script(ctx context.Context, src schema.Source, actions []merge.Action) (*Rendered, error) {
	d := src.Dialect()
	var lines []string
	var spans []Span

	for i, a := range actions {
		if i > 0 {
			lines = append(lines, "")
		}
		start := len(lines) + 1

		lines = append(lines, "-- "+a.Description())
		warnings, err := a.ValidationErrors(ctx, src)
		if err != nil {
			return nil, err
		}
		for _, w := range warnings {
			lines = append(lines, "-- WARNING: "+w)
		}

		stmts, err := a.SQLCommands(ctx, src)
		if err != nil {
			return nil, err
		}
		for _, stmt := range stmts {
			lines = append(lines, strings.Split(stmt+d.StatementTerminator(), "\n")...)
			if sep := d.BatchSeparator(); sep != "" {
				lines = append(lines, sep)
			}
		}

		spans = append(spans, Span{Action: a, StartLine: start, EndLine: len(lines)})
	}

	text := strings.Join(lines, "\n")
	if len(lines) > 0 {
		text += "\n"
	}
	return &Rendered{Text: text, Spans: spans}, nil
}
