package notes

import (
	"strings"

	"notepush.app/notepush/internal/clock"
)

// ResolvePath substitutes calendar placeholders in a path template.
// Recognized placeholders are {yyyy} {yy} {mm} {dd} {date}; every occurrence
// is replaced. Anything else in braces passes through verbatim.
//
// Two deliveries within the same calendar day resolve to the same path,
// which is what makes the note a day bucket.
func ResolvePath(template string, parts clock.TimeParts) string {
	r := strings.NewReplacer(
		"{yyyy}", parts.Year4,
		"{yy}", parts.Year2,
		"{mm}", parts.Month2,
		"{dd}", parts.Day2,
		"{date}", parts.ISODate,
	)
	return r.Replace(template)
}
