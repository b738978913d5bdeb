package bridge

import logx "bridgekit/pkg/logx"

// Severity orders host log messages from most to least severe.
type Severity int

const (
	Critical Severity = iota + 1
	Error
	Warning
	Information
	Verbose
)

func (s Severity) String() string {
	switch s {
	case Critical:
		return "Critical"
	case Error:
		return "Error"
	case Warning:
		return "Warning"
	case Information:
		return "Information"
	case Verbose:
		return "Verbose"
	default:
		return "Unknown"
	}
}

// Level maps s onto the structured logger levels.
func (s Severity) Level() logx.Level {
	switch s {
	case Critical, Error:
		return logx.LevelError
	case Warning:
		return logx.LevelWarn
	case Verbose:
		return logx.LevelDebug
	default:
		return logx.LevelInfo
	}
}

// SeverityFromLevel is the inverse of Level; errors map to Error.
func SeverityFromLevel(l logx.Level) Severity {
	switch {
	case l >= logx.LevelError:
		return Error
	case l == logx.LevelWarn:
		return Warning
	case l == logx.LevelInfo:
		return Information
	default:
		return Verbose
	}
}
