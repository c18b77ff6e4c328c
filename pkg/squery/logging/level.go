package logging

import (
	"bytes"
	"strings"
)

// Level represents different logging levels.
type Level int

const (
	DEBUG Level = iota + 1
	INFO
	NOTICE
	WARN
	ERROR
	FATAL
)

// String constants for logging levels.
const (
	levelDEBUG  = "DEBUG"
	levelINFO   = "INFO"
	levelNOTICE = "NOTICE"
	levelWARN   = "WARN"
	levelERROR  = "ERROR"
	levelFATAL  = "FATAL"
)

//nolint:gochecknoglobals // lookup table shared by String and GetLevelFromString.
var levelNames = map[Level]string{
	DEBUG:  levelDEBUG,
	INFO:   levelINFO,
	NOTICE: levelNOTICE,
	WARN:   levelWARN,
	ERROR:  levelERROR,
	FATAL:  levelFATAL,
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}

	return ""
}

//nolint:gomnd // ANSI colour codes.
func (l Level) color() uint {
	switch l {
	case ERROR, FATAL:
		return 160
	case WARN, NOTICE:
		return 220
	case INFO:
		return 6
	case DEBUG:
		return 8
	default:
		return 37
	}
}

// MarshalJSON writes the level name as a JSON string.
func (l Level) MarshalJSON() ([]byte, error) {
	buf := bytes.NewBufferString(`"`)
	buf.WriteString(l.String())
	buf.WriteString(`"`)

	return buf.Bytes(), nil
}

// GetLevelFromString parses a level name, falling back to INFO.
func GetLevelFromString(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case levelDEBUG:
		return DEBUG
	case levelNOTICE:
		return NOTICE
	case levelWARN:
		return WARN
	case levelERROR:
		return ERROR
	case levelFATAL:
		return FATAL
	default:
		return INFO
	}
}
