package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

func success(w io.Writer, msg string) {
	fmt.Fprintln(w, color.GreenString("✓")+" "+msg)
}

func warn(w io.Writer, msg string) {
	fmt.Fprintln(w, color.YellowString("!")+" "+msg)
}

func fail(w io.Writer, msg string) {
	fmt.Fprintln(w, color.RedString("✗")+" "+msg)
}

func hint(w io.Writer, msg string) {
	fmt.Fprintln(w, color.CyanString("→")+" "+msg)
}

// newSpinner returns a stopped spinner. It only draws when w is a terminal.
func newSpinner(w io.Writer, suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	return s
}
