package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PassphraseFunc supplies the passphrase that unlocks the API key file.
type PassphraseFunc func() (string, error)

// EnvOrPromptPassphrase reads PHOTOSYNC_PASSPHRASE, falling back to an
// interactive prompt when stdin is a terminal.
func EnvOrPromptPassphrase() (string, error) {
	if p := os.Getenv(EnvPassphrase); p != "" {
		return p, nil
	}
	return ReadSecret("Passphrase: ")
}

// ReadSecret prints prompt to stderr and reads a line from the terminal
// without echo. When stdin is not a terminal the line is read as is, which
// lets scripts pipe the value in.
func ReadSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(os.Stdin)
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading from terminal: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// readLine reads up to a newline one byte at a time so that consecutive
// calls on the same stream do not lose buffered input.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if err == io.EOF {
			if sb.Len() == 0 {
				return "", fmt.Errorf("reading from stdin: %w", io.ErrUnexpectedEOF)
			}
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading from stdin: %w", err)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
