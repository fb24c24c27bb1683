// Package wizard prompts for recordings when none are given on the command
// line.
package wizard

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"

	"github.com/tessro/mocap/internal/motion"
)

// ErrNoRecordings is returned when the library directory has no recordings.
var ErrNoRecordings = errors.New("no recordings found in library")

// RecordingOptions builds picker options labeled with size and age.
func RecordingOptions(entries []motion.Entry) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(entries))
	for _, e := range entries {
		label := fmt.Sprintf("%s (%s, %s)", e.Name, humanize.Bytes(uint64(e.Size)), humanize.Time(e.ModTime))
		options = append(options, huh.NewOption(label, e.Path))
	}
	return options
}

// PickRecordings runs a picker over entries. With multi set, several
// recordings can be chosen for side-by-side playback.
func PickRecordings(entries []motion.Entry, multi bool) ([]string, error) {
	options := RecordingOptions(entries)

	var field huh.Field
	var one string
	var many []string
	if multi {
		field = huh.NewMultiSelect[string]().
			Title("Select recordings").
			Description("Each recording gets its own viewport").
			Options(options...).
			Validate(func(v []string) error {
				if len(v) == 0 {
					return errors.New("select at least one recording")
				}
				return nil
			}).
			Value(&many)
	} else {
		field = huh.NewSelect[string]().
			Title("Select a recording").
			Options(options...).
			Value(&one)
	}

	form := huh.NewForm(huh.NewGroup(field))
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("selection cancelled: %w", err)
	}

	if multi {
		return many, nil
	}
	return []string{one}, nil
}
