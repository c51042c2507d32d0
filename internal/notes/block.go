package notes

import (
	"strings"

	"notepush.app/notepush/internal/clock"
	"notepush.app/notepush/internal/line"
)

// Header renders the first line of a fresh day note.
func Header(parts clock.TimeParts) string {
	return "# " + parts.ISODate + "\n"
}

// FormatBlock renders messages as timestamped bullet lines, one per message,
// joined with LF and ending in exactly one trailing LF. Message-internal
// CRLF and bare CR line breaks are normalized to LF first.
func FormatBlock(msgs []line.Message, parts clock.TimeParts) string {
	if len(msgs) == 0 {
		return ""
	}

	var b strings.Builder
	for _, m := range msgs {
		b.WriteString("- ")
		b.WriteString(parts.Hour2)
		b.WriteString(":")
		b.WriteString(parts.Minute2)
		b.WriteString(" ")
		b.WriteString(normalizeNewlines(m.Text))
		b.WriteString("\n")
	}
	return b.String()
}

// AppendBlock joins existing note content with a new block, forcing the
// existing content to end with exactly one newline first.
func AppendBlock(existing, block string) string {
	return strings.TrimRight(existing, "\n") + "\n" + block
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
