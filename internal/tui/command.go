package tui

import (
	"fmt"
	"strconv"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), ":"))
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Target splits Args into a message number and the remaining text.
func (c Command) Target() (int, string, error) {
	head, rest, _ := strings.Cut(c.Args, " ")
	head = strings.TrimPrefix(head, "#")
	if head == "" {
		return 0, "", fmt.Errorf("usage: :%s <n>", c.Name)
	}
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, "", fmt.Errorf("%q is not a message number", head)
	}
	return n, strings.TrimSpace(rest), nil
}
