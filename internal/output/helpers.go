package output

import (
	"os"
	"time"

	"github.com/tanq16/xferbench/internal/utils"
	"golang.org/x/term"
)

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // Default fallback width
	}
	return width
}

// shortDigest trims digests on narrow terminals; full digests need ~140 columns.
func shortDigest(d string, width int) string {
	if width >= 140 || len(d) <= 16 {
		return d
	}
	return d[:16] + "…"
}

func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "-"
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(100 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}

func formatThroughput(bytes int64, d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return utils.FormatSpeed(bytes, d.Seconds())
}
