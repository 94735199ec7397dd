package present

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/unai/internal/proto"
)

const defaultAction = "done"

// Confirmation renders an uppercased action badge followed by content.
func Confirmation(s Styles, action, content string) string {
	if action == "" {
		action = defaultAction
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, s.Badge.Render(strings.ToUpper(action)), content)
}

// RunSummary describes a stored run on one line: its short id, its title and,
// when known, how many model calls it took and the tokens it used.
func RunSummary(s Styles, shortID, title string, iterations int, usage proto.Usage) string {
	line := s.InlineCode.Render(shortID)
	if title != "" && title != shortID {
		line += " " + title
	}

	var stats []string
	switch {
	case iterations == 1:
		stats = append(stats, "1 iteration")
	case iterations > 1:
		stats = append(stats, fmt.Sprintf("%d iterations", iterations))
	}
	if total := usage.Total(); total > 0 {
		stats = append(stats, fmt.Sprintf("%d tokens", total))
	}
	if len(stats) > 0 {
		line += " " + s.Comment.Render("("+strings.Join(stats, ", ")+")")
	}
	return line
}
