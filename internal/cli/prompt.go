package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNotInteractive is returned when input is needed but stdin is not a terminal.
var ErrNotInteractive = errors.New("input required but stdin is not a terminal")

// Prompter asks the user for input.
type Prompter interface {
	Prompt(label string) (string, error)
	Secret(label string) (string, error)
	Confirm(label string, def bool) (bool, error)
}

// terminalPrompter reads from stdin and writes prompts to stderr.
type terminalPrompter struct {
	reader *bufio.Reader
}

func newTerminalPrompter() *terminalPrompter {
	return &terminalPrompter{reader: bufio.NewReader(os.Stdin)}
}

func (p *terminalPrompter) interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (p *terminalPrompter) Prompt(label string) (string, error) {
	if !p.interactive() {
		return "", fmt.Errorf("%s: %w", label, ErrNotInteractive)
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	input, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// Secret reads without echo.
func (p *terminalPrompter) Secret(label string) (string, error) {
	if !p.interactive() {
		return "", fmt.Errorf("%s: %w", label, ErrNotInteractive)
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (p *terminalPrompter) Confirm(label string, def bool) (bool, error) {
	if !p.interactive() {
		return def, nil
	}
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	answer, err := p.Prompt(fmt.Sprintf("%s [%s]", label, hint))
	if err != nil {
		return def, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		fmt.Fprintln(os.Stderr, "Invalid choice, please try again.")
		return p.Confirm(label, def)
	}
}
