package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
)

const binName = "cassette"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> <entry-file> [<extra-file>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> <entry-file> [<extra-file>...]
       %[1]s -h|--help
       %[1]s -v|--version

Compiler, assembler and VM for the %[1]s language (spec.md §6.1).

The <command> can be one of:
       tokenize                  Run the scanner and print the resulting
                                 tokens.
       parse                     Run the parser and print the resulting
                                 syntax tree.
       compile                   Run the compiler (and assembler); with
                                 -c, also write a .tape chunk file next to
                                 entry-file.
       run                       Compile (or load a .tape chunk) and
                                 execute the project.

The entry file either contains source code or is a previously-compiled
chunk, identified by its magic header regardless of extension. Additional
files (and any CASSETTE_STDLIB directory) become additional project
modules, imported by the name of their file.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       -d --disassemble          Enable tracing: print the assembled
                                 bytecode listing (compile, run) before
                                 running it.
       -c --compile-only         compile: write entry-file's compiled
                                 chunk as a sibling .tape file.
       -s --seed <N>             Seed the random generator with decimal
                                 integer N; a time-derived seed is used
                                 when omitted.

More information on the %[1]s language:
       https://github.com/mna/cassette
`, binName)
)

// Cmd is the top-level command dispatched by cmd/cassette/main.go, in the
// same shape the teacher's own internal/maincmd.Cmd takes: exported fields
// tagged for mainer's flag parser, a private cmdFn resolved by Validate and
// invoked by Main.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Disassemble bool   `flag:"d,disassemble"`
	CompileOnly bool   `flag:"c,compile-only"`
	Seed        int64  `flag:"s,seed"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string) {
	c.args = args
}

func (c *Cmd) SetFlags(flags map[string]bool) {
	c.flags = flags
}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]
	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	if len(c.args[1:]) == 0 {
		return fmt.Errorf("%s: at least one file must be provided", cmdName)
	}

	if c.flags["compile-only"] && cmdName != "compile" {
		return fmt.Errorf("%s: invalid flag '-c' (only valid for compile)", cmdName)
	}

	return nil
}

// Main parses args, dispatches to the resolved subcommand, and maps its
// outcome to a process exit code (spec.md §6.1: "0 success, 1 any error").
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: strings.ToUpper(binName) + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		// each command prints its own error via lang/report; just set the
		// process exit code here.
		return mainer.Failure
	}
	return mainer.Success
}

// valid commands are those that take a context.Context, a mainer.Stdio and
// a slice of strings as input, and return an error as output - the same
// reflection-based discovery the teacher's buildCmds uses, so adding a new
// subcommand method is the only step needed to expose it.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
