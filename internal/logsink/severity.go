package logsink

// Severity tags an entry. The numeric values double as display colours on
// log clients.
type Severity int

const (
	SeverityInfo     Severity = 0
	SeverityWarn     Severity = 1
	SeverityDebug    Severity = 3
	SeverityError    Severity = 6
	SeverityNotice   Severity = 10
	SeveritySuccess  Severity = 13
	SeverityCritical Severity = 14
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityDebug:
		return "debug"
	case SeverityError:
		return "error"
	case SeverityNotice:
		return "notice"
	case SeveritySuccess:
		return "success"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
