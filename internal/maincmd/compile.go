package maincmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mna/mainer"

	"github.com/mna/cassette/lang/asm"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/primitive"
	"github.com/mna/cassette/lang/report"
	"github.com/mna/cassette/lang/vm"
)

// Compile runs the parser and compiler over the project named by args (the
// entry file, then any extra module files plus CASSETTE_STDLIB), printing
// the assembled bytecode listing when -d is given, and writing a sibling
// .tape chunk file when -c is given (spec.md §6.1).
func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	entryPath := args[0]
	entrySrc, entryCloser, err := readFile(entryPath)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", entryPath, err)
		return err
	}
	defer entryCloser()

	if asm.LooksLikeChunk(entrySrc) {
		err := fmt.Errorf("%s: already a compiled chunk, nothing to compile", entryPath)
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	env, err := loadEnvConfig()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	loaded, modules, closeAll, err := gatherProject(args[1:], env.StdlibDir)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	defer closeAll()
	_ = loaded

	h := heap.New()
	prims := primitive.Build(primitive.NewOSGateway())
	chunk, _, err := vm.BuildProject(h, prims, entryPath, entrySrc, modules)
	if err != nil {
		report.Print(stdio.Stderr, entryPath, entrySrc, err)
		return err
	}

	if c.Disassemble {
		if err := asm.Disassemble(stdio.Stdout, h, chunk); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
	}

	if c.CompileOnly {
		outPath := strings.TrimSuffix(entryPath, filepath.Ext(entryPath)) + asm.TapeExt
		f, err := os.Create(outPath)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
		defer f.Close()
		if err := chunk.Write(f, h); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
		fmt.Fprintf(stdio.Stdout, "wrote %s\n", outPath)
	}

	return nil
}
