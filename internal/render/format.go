package render

import (
	"fmt"
	"strings"
)

// FormatLargeNumber renders big point totals with K/M suffixes.
func FormatLargeNumber(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// Ordinal renders a 1-based rank as 1st, 2nd, 3rd, Nth. The teens always
// take "th".
func Ordinal(rank int) string {
	suffix := "th"
	switch rank % 100 {
	case 11, 12, 13:
	default:
		switch rank % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", rank, suffix)
}

// TruncateText shortens text to maxLen runes with a trailing ellipsis.
func TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-3]) + "..."
}

// ProgressBar renders a fixed-width bar of filled/empty blocks with a
// trailing percentage. A non-positive target counts as complete.
func ProgressBar(current, target, length int) string {
	if target <= 0 {
		return "`" + strings.Repeat("█", length) + "` 100%"
	}

	progress := float64(current) / float64(target)
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(length))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", length-filled)
	return fmt.Sprintf("`%s` %d%%", bar, int(progress*100))
}

// FormatPointsChange renders a signed delta, keeping the plus sign.
func FormatPointsChange(change int) string {
	if change > 0 {
		return fmt.Sprintf("+%d", change)
	}
	return fmt.Sprintf("%d", change)
}
