package checks

import (
	"fmt"
	"strings"
)

// Level is the severity of a single finding. The gaps leave room for
// intermediate levels without renumbering.
type Level int

const (
	LevelDebug    Level = 10
	LevelInfo     Level = 20
	LevelWarning  Level = 30
	LevelError    Level = 40
	LevelCritical Level = 50
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps a flag value like "warning" to its Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "critical":
		return LevelCritical, nil
	}
	return 0, fmt.Errorf("unknown check level %q (debug, info, warning, error, critical)", s)
}

// Message is one finding produced by a check. ID is the stable identifier
// operators silence by ("security.W002"); Obj names the subject when the
// finding is about one particular thing rather than the deployment as a whole.
type Message struct {
	Level   Level
	ID      string
	Summary string
	Hint    string
	Obj     string
}

func Debug(id, summary string) Message {
	return Message{Level: LevelDebug, ID: id, Summary: summary}
}

func Info(id, summary string) Message {
	return Message{Level: LevelInfo, ID: id, Summary: summary}
}

func Warning(id, summary string) Message {
	return Message{Level: LevelWarning, ID: id, Summary: summary}
}

func Error(id, summary string) Message {
	return Message{Level: LevelError, ID: id, Summary: summary}
}

func Critical(id, summary string) Message {
	return Message{Level: LevelCritical, ID: id, Summary: summary}
}

// WithHint returns a copy carrying a remedy the operator can act on.
func (m Message) WithHint(hint string) Message {
	m.Hint = hint
	return m
}

// WithObj returns a copy naming the subject of the finding.
func (m Message) WithObj(obj string) Message {
	m.Obj = obj
	return m
}

// IsSerious reports whether the finding is at error level or above.
func (m Message) IsSerious() bool {
	return m.Level >= LevelError
}

// IsSilenced reports whether the message ID is in the silenced set.
func (m Message) IsSilenced(silenced []string) bool {
	if m.ID == "" {
		return false
	}
	for _, id := range silenced {
		if strings.TrimSpace(id) == m.ID {
			return true
		}
	}
	return false
}

func (m Message) String() string {
	var b strings.Builder
	if m.Obj != "" {
		b.WriteString(m.Obj)
	} else {
		b.WriteString("?")
	}
	b.WriteString(": ")
	if m.ID != "" {
		fmt.Fprintf(&b, "(%s) ", m.ID)
	}
	b.WriteString(m.Summary)
	if m.Hint != "" {
		fmt.Fprintf(&b, "\n\tHINT: %s", m.Hint)
	}
	return b.String()
}
