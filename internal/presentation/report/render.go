package report

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Render writes the markdown to w, styled with glamour when w is an
// interactive terminal and passed through verbatim otherwise, so piped
// output stays machine-friendly.
func Render(w io.Writer, markdown string) error {
	if !isTerminal(w) || termenv.EnvNoColor() {
		_, err := io.WriteString(w, markdown)
		return err
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		_, werr := io.WriteString(w, markdown)
		return werr
	}
	styled, err := r.Render(markdown)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err = io.WriteString(w, styled)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
