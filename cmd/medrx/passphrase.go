package main

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"medrx/internal/app"
)

// readPassphrase returns MEDRX_PASSPHRASE if set, otherwise prompts on the
// terminal. With confirm set the passphrase must be typed twice.
func readPassphrase(confirm bool) (string, error) {
	if p := os.Getenv(app.EnvPassphrase); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to prompt on; set %s", app.EnvPassphrase)
	}

	p, err := prompt(fd, "Passphrase: ")
	if err != nil {
		return "", err
	}
	if confirm {
		again, err := prompt(fd, "Confirm passphrase: ")
		if err != nil {
			return "", err
		}
		if again != p {
			return "", errors.New("passphrases do not match")
		}
	}
	return p, nil
}

func prompt(fd int, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}
