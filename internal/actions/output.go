package actions

// OutputWriter is where handlers write. The same handler output renders on
// the command line and inside the menu's progress views.
type OutputWriter interface {
	Print(msg string)
	Println(args ...interface{})

	Info(msg string)
	Success(msg string)
	Warning(msg string)
	Error(msg string)
	Status(msg string)

	Box(title string, lines []string)
	KV(key, value string) string
	Table(headers []string, rows [][]string)

	// ShowInfo opens a full-screen info view. Only valid in the menu.
	ShowInfo(cfg InfoConfig) error

	BeginProgress(title string)
	EndProgress()
}

// InfoConfig configures an info display.
type InfoConfig struct {
	Title       string
	Description string
	Sections    []InfoSection
}

// InfoSection is a titled group of rows in an info view.
type InfoSection struct {
	Title string
	Rows  []InfoRow
}

// InfoRow is a Key/Value line, or a table row when Columns is set.
type InfoRow struct {
	Key     string
	Value   string
	Columns []string
}

// Connection state symbols.
const (
	SymbolRunning = "●"
	SymbolStopped = "○"
	SymbolArrow   = "→"
)
