package console

import "github.com/gdamore/tcell/v2"

// Console levels as reported by the remote runtime.
const (
	LevelLog     = "log"
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelTip     = "tip"
)

// StyleFor returns the display style for a console level.
func StyleFor(level string) tcell.Style {
	base := tcell.StyleDefault
	switch level {
	case LevelError:
		return base.Foreground(tcell.ColorRed).Bold(true)
	case "warn", LevelWarning:
		return base.Foreground(tcell.ColorYellow)
	case LevelDebug:
		return base.Foreground(tcell.ColorGray)
	case LevelInfo:
		return base.Foreground(tcell.ColorTeal)
	case LevelTip:
		return base.Foreground(tcell.ColorGreen)
	default:
		return base
	}
}
