package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Command is one ledgerbook subcommand.
type Command struct {
	Name        string
	Description string
	Usage       string
	Examples    []string
	// Public commands run without a signed-in session.
	Public bool
	Run    func(ctx context.Context, a *app, args []string) error
}

// NewFlagSet creates a flag set that reports problems to w instead of
// exiting.
func (c *Command) NewFlagSet(w io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(c.Name, flag.ContinueOnError)
	fs.SetOutput(w)
	fs.Usage = func() { c.PrintUsage(w) }
	return fs
}

func (c *Command) PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "%s\n\n", c.Description)
	fmt.Fprintf(w, "USAGE:\n    %s\n\n", c.Usage)
	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "EXAMPLES:\n")
		for _, example := range c.Examples {
			fmt.Fprintf(w, "    %s\n", example)
		}
	}
}

// CommandRegistry manages all CLI commands
type CommandRegistry struct {
	commands map[string]*Command
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]*Command)}
}

func (r *CommandRegistry) Register(c *Command) {
	r.commands[c.Name] = c
}

func (r *CommandRegistry) Get(name string) (*Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

func (r *CommandRegistry) PrintHelp(w io.Writer) {
	fmt.Fprintln(w, "ledgerbook - personal income and expense ledger")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "    ledgerbook <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "COMMANDS:")

	names := make([]string, 0, len(r.commands))
	width := 0
	for name := range r.commands {
		names = append(names, name)
		width = max(width, len(name))
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "    %s%s  %s\n", name, strings.Repeat(" ", width-len(name)), r.commands[name].Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'ledgerbook help <command>' for details.")
}
