// ABOUTME: Presets the lipgloss background so rendering never queries the terminal
// ABOUTME: Reads COLORFGBG when set and defaults to dark; import with _ from main

package termfix

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func init() {
	// An explicit background skips the OSC 10/11 query whose late reply
	// would otherwise land on stdin.
	lipgloss.SetHasDarkBackground(DarkBackground(os.Getenv("COLORFGBG")))
}

// DarkBackground interprets a COLORFGBG value ("fg;bg" or "fg;default;bg").
// Unknown or empty values count as dark.
func DarkBackground(colorfgbg string) bool {
	if colorfgbg == "" {
		return true
	}
	parts := strings.Split(colorfgbg, ";")
	bg, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return true
	}
	// ANSI 7 (white) and 9-15 (bright) are light backgrounds.
	return bg != 7 && bg < 9
}
