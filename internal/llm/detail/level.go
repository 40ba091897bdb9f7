package detail

// Level controls how much of a commit's diff content is included in a
// prompt, trading completeness for size. The order is strictly decreasing
// in rendered size for the same commit.
type Level int

const (
	Full Level = iota
	Truncated
	StatOnly
	FileListOnly
)

// Levels returns all levels ordered from most to least detailed.
func Levels() []Level {
	return []Level{Full, Truncated, StatOnly, FileListOnly}
}

// Next returns the next cheaper level, and false when already at the
// cheapest.
func (l Level) Next() (Level, bool) {
	if l >= FileListOnly {
		return FileListOnly, false
	}
	return l + 1, true
}

func (l Level) String() string {
	switch l {
	case Full:
		return "full"
	case Truncated:
		return "truncated"
	case StatOnly:
		return "stat-only"
	case FileListOnly:
		return "file-list-only"
	default:
		return "unknown"
	}
}
