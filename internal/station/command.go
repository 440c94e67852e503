package station

import "strings"

// Kind is the closed set of commands the station understands.
type Kind int

const (
	Unknown Kind = iota
	Start
	Defect
	Normal
	Reset
)

var kindNames = map[Kind]string{
	Unknown: "UNKNOWN",
	Start:   "START",
	Defect:  "DEFECT",
	Normal:  "NORMAL",
	Reset:   "RESET",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Command is one interpreted input line. Raw keeps the trimmed text, which
// is the only payload of an Unknown command.
type Command struct {
	Kind Kind
	Raw  string
}

// Interpret trims surrounding whitespace and matches the result exactly
// (case-sensitive) against the command words.
func Interpret(line string) Command {
	raw := strings.TrimSpace(line)
	switch raw {
	case "START":
		return Command{Kind: Start, Raw: raw}
	case "DEFECT":
		return Command{Kind: Defect, Raw: raw}
	case "NORMAL":
		return Command{Kind: Normal, Raw: raw}
	case "RESET":
		return Command{Kind: Reset, Raw: raw}
	default:
		return Command{Kind: Unknown, Raw: raw}
	}
}

// Ack is the line sent to the host before the command's handler runs.
func (c Command) Ack() string {
	switch c.Kind {
	case Start:
		return "startProcess..."
	case Defect:
		return "handleDefect..."
	case Normal:
		return "handleNormal..."
	case Reset:
		return "Resetting devices..."
	default:
		return "Unknown command..."
	}
}
