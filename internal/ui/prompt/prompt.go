package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prompter asks the user before destructive operations
type Prompter interface {
	// Confirm requires the user to type expectedValue exactly
	Confirm(message string, expectedValue string) (bool, error)
	// ConfirmYes accepts "y" or "yes", case-insensitively
	ConfirmYes(message string) (bool, error)
}

// StandardPrompter reads answers line by line from in
type StandardPrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

func NewStandardPrompter(in io.Reader, out io.Writer) *StandardPrompter {
	return &StandardPrompter{
		reader: bufio.NewReader(in),
		writer: out,
	}
}

func (p *StandardPrompter) Confirm(message string, expectedValue string) (bool, error) {
	if expectedValue == "" {
		return false, fmt.Errorf("expected confirmation value cannot be empty")
	}

	fmt.Fprintln(p.writer, message)
	fmt.Fprintf(p.writer, "To confirm, please type '%s': ", expectedValue)

	input, ok, err := p.readLine()
	if err != nil || !ok {
		return false, err
	}
	return input == expectedValue, nil
}

func (p *StandardPrompter) ConfirmYes(message string) (bool, error) {
	fmt.Fprintf(p.writer, "%s [y/N]: ", message)

	input, ok, err := p.readLine()
	if err != nil || !ok {
		return false, err
	}
	switch strings.ToLower(input) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// readLine treats end of input without an answer as a refusal
func (p *StandardPrompter) readLine() (string, bool, error) {
	input, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if input == "" {
				return "", false, nil
			}
			return strings.TrimSpace(input), true, nil
		}
		return "", false, fmt.Errorf("error reading user input: %w", err)
	}
	return strings.TrimSpace(input), true, nil
}
