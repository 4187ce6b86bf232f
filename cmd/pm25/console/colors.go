package console

import "github.com/fatih/color"

// Available ANSI colors
var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
	Bold   = color.New(color.Bold).SprintFunc()
)

// Severity picks a color for a PM2.5 concentration in µg/m³ following the
// US EPA 24h breakpoints (good, moderate, unhealthy).
func Severity(pm uint16) func(a ...interface{}) string {
	switch {
	case pm <= 12:
		return Green
	case pm <= 35:
		return Yellow
	default:
		return Red
	}
}
