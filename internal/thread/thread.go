// Package thread models the input text thread and its parsing into ordered
// segments. A thread arrives as delimiter-separated pieces: the piece before
// the first delimiter is the hook and is not matched against video content.
package thread

import (
	"fmt"
	"strings"

	"clipper/internal/services"
)

// Delimiter is the literal line separating thread segments.
const Delimiter = "---"

// Segment is one unit of input text to be matched against video content.
// Ordinal defines match-target identity; two segments with identical text are
// still distinct targets.
type Segment struct {
	ID      string `json:"id"`
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

// Parse splits threadText into ordered segments. Pieces are separated by
// lines whose trimmed content equals Delimiter; each piece is trimmed and
// empty pieces are dropped. When the thread contains at least one delimiter,
// the leading piece (the hook) is excluded from matching. A thread with zero
// usable segments is an input error.
func Parse(threadText string) ([]Segment, error) {
	pieces := splitOnDelimiter(threadText)

	trimmed := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if p := strings.TrimSpace(piece); p != "" {
			trimmed = append(trimmed, p)
		}
	}

	// The hook introduces the thread; it has no corresponding clip.
	if len(pieces) > 1 && len(trimmed) > 1 && strings.TrimSpace(pieces[0]) == trimmed[0] {
		trimmed = trimmed[1:]
	}

	if len(trimmed) == 0 {
		return nil, services.Wrap(services.ErrInput, "thread", "parse", "thread contains no usable segments", nil)
	}

	segments := make([]Segment, len(trimmed))
	for i, text := range trimmed {
		segments[i] = Segment{
			ID:      fmt.Sprintf("segment-%d", i+1),
			Ordinal: i + 1,
			Text:    text,
		}
	}
	return segments, nil
}

func splitOnDelimiter(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var pieces []string
	var current strings.Builder
	flush := func() {
		pieces = append(pieces, current.String())
		current.Reset()
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == Delimiter {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	flush()
	return pieces
}
