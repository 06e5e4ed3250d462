// Command moth is the driver for the Moth virtual machine: it compiles
// and runs .silk source and .moth bytecode files, disassembles compiled
// programs, and hosts an interactive REPL.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/silklang/moth/internal/logx"
	"github.com/silklang/moth/pkg/bytecode"
	"github.com/silklang/moth/pkg/compiler"
	"github.com/silklang/moth/pkg/parser"
	"github.com/silklang/moth/pkg/vm"
)

const version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "moth"
	app.Usage = "the Moth bytecode virtual machine"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "verbose", Usage: "log VM/GC/FFI events at debug level"},
		cli.BoolFlag{Name: "disassemble, d", Usage: "disassemble the given file instead of running it"},
	}
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "run a .silk source file or a .moth bytecode file",
			ArgsUsage: "<file>",
			Action:    withStatusExit(runCommand),
		},
		{
			Name:      "compile",
			Usage:     "compile a .silk source file to a .moth bytecode file",
			ArgsUsage: "<in> [out]",
			Action:    withStatusExit(compileCommand),
		},
		{
			Name:      "disassemble",
			Aliases:   []string{"disasm"},
			Usage:     "print a human-readable dump of a .moth bytecode file",
			ArgsUsage: "<file>",
			Action:    withStatusExit(disassembleCommand),
		},
		{
			Name:   "repl",
			Usage:  "start an interactive read-eval-print loop",
			Action: withStatusExit(replCommand),
		},
	}
	app.Action = func(ctx *cli.Context) error {
		configureLogging(ctx)
		if ctx.GlobalBool("disassemble") {
			if ctx.NArg() == 0 {
				return cli.NewExitError("disassemble requires a file argument", int(vm.StatusInvArg))
			}
			return runExit(disassembleFile(ctx.Args().First()))
		}
		if ctx.NArg() == 0 {
			return runExit(runREPL())
		}
		return runExit(runFile(ctx.Args().First()))
	}

	if err := app.Run(os.Args); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			if msg := exitErr.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withStatusExit adapts a (vm.Status, error) command into the
// cli.ActionFunc shape app.Commands expects, translating both into a
// cli.ExitError so app.Run's caller sees one consistent exit path.
func withStatusExit(fn func(*cli.Context) (vm.Status, error)) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		configureLogging(ctx)
		return runExit(fn(ctx))
	}
}

func runExit(status vm.Status, err error) error {
	if err != nil {
		msg := err.Error()
		if status == vm.StatusOK {
			status = vm.StatusInvArg
		}
		return cli.NewExitError(msg, int(status))
	}
	if status != vm.StatusOK {
		return cli.NewExitError("", int(status))
	}
	return nil
}

func configureLogging(ctx *cli.Context) {
	if ctx.GlobalBool("verbose") {
		logx.Default.SetLevel(logx.LevelDebug)
	}
}

func runCommand(ctx *cli.Context) (vm.Status, error) {
	if ctx.NArg() == 0 {
		return vm.StatusInvArg, errors.New("run: no file specified")
	}
	return runFile(ctx.Args().First())
}

// runFile loads filename, compiling it first if it is source, and
// executes the resulting program on a fresh VM. The extension decides
// which path is taken, matching how a compiled .moth file skips parsing
// entirely for faster startup.
func runFile(filename string) (vm.Status, error) {
	prog, err := loadProgram(filename)
	if err != nil {
		return vm.StatusInvArg, err
	}
	m := vm.New()
	status, err := m.Run(prog)
	if err != nil {
		return status, errors.Wrap(err, "runtime error")
	}
	return status, nil
}

// loadProgram reads filename and returns its compiled Program, either
// by decoding it directly (.moth) or by lexing, parsing, and compiling
// it (anything else, treated as .silk source).
func loadProgram(filename string) (*bytecode.Program, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	if filepath.Ext(filename) == ".moth" {
		prog, err := bytecode.ReadFile(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "decode bytecode")
		}
		return prog, nil
	}
	return compileSource(string(data))
}

func compileSource(src string) (*bytecode.Program, error) {
	p := parser.New(src)
	ast := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, errors.Errorf("parse errors:\n  %s", joinLines(errs))
	}
	c := compiler.New()
	if err := c.Compile(ast); err != nil {
		return nil, errors.Wrap(err, "compile error")
	}
	return c.Program(), nil
}

func compileCommand(ctx *cli.Context) (vm.Status, error) {
	if ctx.NArg() == 0 {
		return vm.StatusInvArg, errors.New("compile: no input file specified")
	}
	in := ctx.Args().First()
	out := ctx.Args().Get(1)
	if out == "" {
		out = swapExt(in, ".moth")
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return vm.StatusInvArg, errors.Wrap(err, "read input")
	}
	prog, err := compileSource(string(data))
	if err != nil {
		return vm.StatusInvArg, err
	}

	f, err := os.Create(out)
	if err != nil {
		return vm.StatusInvArg, errors.Wrap(err, "create output")
	}
	defer f.Close()
	if err := bytecode.WriteFile(prog, f); err != nil {
		return vm.StatusInvArg, errors.Wrap(err, "write bytecode")
	}
	logx.Default.Info("compiled", "in", in, "out", out)
	return vm.StatusOK, nil
}

func disassembleCommand(ctx *cli.Context) (vm.Status, error) {
	if ctx.NArg() == 0 {
		return vm.StatusInvArg, errors.New("disassemble: no file specified")
	}
	return disassembleFile(ctx.Args().First())
}

func disassembleFile(filename string) (vm.Status, error) {
	prog, err := loadProgram(filename)
	if err != nil {
		return vm.StatusInvArg, err
	}
	constants, symbols, instructions, err := bytecode.Disassemble(prog)
	if err != nil {
		return vm.StatusInvArg, errors.Wrap(err, "disassemble")
	}

	fmt.Printf("=== %s ===\n\n", filename)

	ct := tablewriter.NewWriter(os.Stdout)
	ct.SetHeader([]string{"Index", "Kind", "Value"})
	for _, c := range constants {
		ct.Append([]string{fmt.Sprint(c.Index), c.Kind, c.Text})
	}
	fmt.Println("Constants:")
	ct.Render()

	fmt.Println("\nSymbols:")
	for i, s := range symbols {
		fmt.Printf("  [%d] %s\n", i, s)
	}

	fmt.Println("\nInstructions:")
	it := tablewriter.NewWriter(os.Stdout)
	it.SetHeader([]string{"Offset", "Op", "Operand"})
	for _, inst := range instructions {
		it.Append([]string{fmt.Sprint(inst.Offset), inst.Mnemonic, inst.Operand})
	}
	it.Render()

	return vm.StatusOK, nil
}

func replCommand(*cli.Context) (vm.Status, error) {
	return runREPL()
}

// runREPL hosts an interactive session: one VM persists for the whole
// session, so top-level `let` bindings (DEF/SYM/ASN against the VM's
// environment) remain visible to later inputs. Each input is compiled
// by a fresh compiler (see evalREPL); no compiler state carries over.
func runREPL() (vm.Status, error) {
	fmt.Printf("moth %s\n", version)
	fmt.Println("Type an expression or statement, Ctrl-D to exit.")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	m := vm.New()
	for {
		input, err := line.Prompt("moth> ")
		if err == liner.ErrPromptAborted {
			continue
		}
		if err == io.EOF {
			fmt.Println()
			return vm.StatusOK, nil
		}
		if err != nil {
			return vm.StatusInvArg, errors.Wrap(err, "read input")
		}
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		evalREPL(m, input)
	}
}

// evalREPL compiles and runs one REPL input against the session's VM,
// reporting errors without ending the session.
func evalREPL(m *vm.VM, input string) {
	prog, err := compileSource(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	status, err := m.Run(prog)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if status != vm.StatusOK {
		fmt.Fprintf(os.Stderr, "halted: %s\n", status)
		return
	}
	if top, err := m.StackTop(); err == nil {
		fmt.Printf("=> %s\n", top.String())
	}
}

func swapExt(filename, newExt string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return filename + newExt
	}
	return filename[:len(filename)-len(ext)] + newExt
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n  "
		}
		out += l
	}
	return out
}
