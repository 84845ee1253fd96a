// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"punchlist/internal/service"
)

// FormatTask formats a task line.
// Format: "{N:>4}  [{x| }] {TITLE}\n" (4-wide right-aligned number,
// two spaces, checkbox, title).
func FormatTask(w io.Writer, num int, task service.Task) {
	mark := " "
	if task.Done {
		mark = "x"
	}
	fmt.Fprintf(w, "%4d  [%s] %s\n", num, mark, normalizeTitle(task.Title))
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
