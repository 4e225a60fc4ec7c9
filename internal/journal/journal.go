// Package journal reads dream journal files: optional YAML frontmatter
// followed by the free-text dream.
package journal

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/dreamland/internal/models"
)

// ErrEmpty is returned for a file without dream text.
var ErrEmpty = errors.New("journal entry has no content")

// Entry is one parsed journal file.
type Entry struct {
	Date     time.Time
	Cycle    int
	Language string
	Content  string
}

// Parse reads a journal file. Frontmatter keys date, cycle and language
// are optional; a missing date falls back to modTime. Unusable frontmatter
// values are ignored rather than rejected.
func Parse(data []byte, modTime time.Time) (*Entry, error) {
	fm, body := splitFrontmatter(data)

	e := &Entry{
		Date:    modTime.UTC(),
		Cycle:   1,
		Content: strings.TrimSpace(body),
	}
	if e.Content == "" {
		return nil, ErrEmpty
	}
	if d, ok := dateValue(fm["date"]); ok {
		e.Date = d
	}
	if c, ok := intValue(fm["cycle"]); ok && c >= 1 {
		e.Cycle = c
	}
	if lang, ok := fm["language"].(string); ok {
		e.Language = strings.TrimSpace(lang)
	}
	return e, nil
}

// splitFrontmatter separates a leading --- delimited YAML block from the
// body. Without a closing delimiter, or with invalid YAML, everything is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	return fm, string(rest[idx+1+len(delim):])
}

func dateValue(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d.UTC(), true
	case string:
		t, err := models.ParseDate(d)
		return t, err == nil
	}
	return time.Time{}, false
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// Format renders an entry as a journal file, the inverse of Parse.
func Format(e Entry) []byte {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "date: %s\n", e.Date.UTC().Format(time.DateOnly))
	if e.Cycle > 0 {
		fmt.Fprintf(&b, "cycle: %d\n", e.Cycle)
	}
	if e.Language != "" {
		fmt.Fprintf(&b, "language: %s\n", e.Language)
	}
	b.WriteString("---\n")
	b.WriteString(strings.TrimSpace(e.Content))
	b.WriteString("\n")
	return []byte(b.String())
}
