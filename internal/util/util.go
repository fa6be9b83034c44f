package util

import (
	"os"

	"golang.org/x/term"
)

// IsInteractive reports whether stdin and stdout are attached to a terminal.
// Commands use it to decide whether to prompt for confirmation.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
