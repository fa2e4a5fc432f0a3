package ui

import (
	"fmt"
	"strings"
)

const (
	ProgressFilled = "█"
	ProgressEmpty  = "░"
)

// ProgressBar renders done out of total as a fixed-width bar with a counter
func ProgressBar(done, total, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat(ProgressFilled, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, done, total)
}
