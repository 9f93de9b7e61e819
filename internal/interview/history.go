package interview

import (
	"fmt"
	"strings"
)

// FormatHistory renders the last n turns as "role: text" lines. n <= 0 renders everything.
func FormatHistory(turns []Turn, n int) string {
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	if len(turns) == 0 {
		return "(no previous messages)"
	}

	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, strings.TrimSpace(t.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}
