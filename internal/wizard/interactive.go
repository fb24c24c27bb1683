package wizard

import (
	"os"

	"golang.org/x/term"

	"github.com/tessro/mocap/internal/motion"
)

// Interactive provides interactive fallback functionality.
type Interactive struct {
	enabled bool
	dir     string
	list    func(dir string) ([]motion.Entry, error)
	pick    func(entries []motion.Entry, multi bool) ([]string, error)
}

// NewInteractive creates a new interactive handler that browses dir.
func NewInteractive(dir string) *Interactive {
	return &Interactive{
		enabled: true,
		dir:     dir,
		list:    motion.List,
		pick:    PickRecordings,
	}
}

// SetEnabled enables or disables interactive mode.
func (i *Interactive) SetEnabled(enabled bool) {
	i.enabled = enabled
}

// IsTerminal returns true if stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// CanInteract returns true if interactive mode is available.
func (i *Interactive) CanInteract() bool {
	return i.enabled && IsTerminal()
}

// PromptRecordings lets the user pick recordings from the library directory.
// It returns nil when interactive mode is unavailable.
func (i *Interactive) PromptRecordings(multi bool) ([]string, error) {
	if !i.CanInteract() {
		return nil, nil
	}
	return i.prompt(multi)
}

func (i *Interactive) prompt(multi bool) ([]string, error) {
	entries, err := i.list(i.dir)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoRecordings
	}
	return i.pick(entries, multi)
}

// NeedsRecording returns true if a recording argument is required but
// missing.
func NeedsRecording(args []string) bool {
	return len(args) == 0
}
