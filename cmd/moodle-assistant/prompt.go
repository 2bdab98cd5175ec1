package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"moodle-assistant/internal/models"

	"golang.org/x/term"
)

// prompter asks for whatever login fields were not given as flags.
type prompter struct {
	in  io.Reader
	r   *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, r: bufio.NewReader(in), out: out}
}

func (p *prompter) complete(req models.LoginRequest) (models.LoginRequest, error) {
	var err error
	if req.MoodleURL == "" {
		if req.MoodleURL, err = p.line("Moodle URL: "); err != nil {
			return req, err
		}
	}
	if req.Username == "" {
		if req.Username, err = p.line("Username: "); err != nil {
			return req, err
		}
	}
	if req.Password == "" {
		if req.Password, err = p.secret("Password: "); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (p *prompter) line(label string) (string, error) {
	s, err := p.raw(label)
	return strings.TrimSpace(s), err
}

func (p *prompter) raw(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// secret reads without echo when stdin is a terminal.
func (p *prompter) secret(label string) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return p.raw(label)
}
