package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword reads a password from the terminal without echo.
func readPassword(w io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password required (use --password when stdin is not a terminal)")
	}
	fmt.Fprint(w, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// ensurePassword prompts when the flag was left empty.
func ensurePassword(p *string) error {
	if *p != "" {
		return nil
	}
	pw, err := readPassword(os.Stderr, "Password: ")
	if err != nil {
		return err
	}
	*p = pw
	return nil
}
