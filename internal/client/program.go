package client

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// Options configures the board viewer.
type Options struct {
	ServerURL string
	Token     string
	GridID    string
}

// Run connects to the server and drives the board TUI until quit.
func Run(opts Options) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("the board viewer needs a terminal")
	}

	c, err := Dial(opts.ServerURL, opts.Token)
	if err != nil {
		return err
	}
	defer c.Close()

	p := tea.NewProgram(newBoardModel(c, opts.GridID), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running board view: %w", err)
	}
	return nil
}
