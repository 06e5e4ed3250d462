package vm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/silklang/moth/pkg/bytecode"
)

// Debugger provides interactive debugging support for a VM, paused at
// the dispatch loop's top-of-loop yield point (the DBG opcode or a
// breakpoint).
type Debugger struct {
	vm          *VM
	breakpoints map[int]bool
	stepMode    bool
	enabled     bool
	instrs      []bytecode.Instruction
	program     *bytecode.Program
}

// NewDebugger creates a debugger for vm. Call Enable to activate it.
func NewDebugger(vm *VM) *Debugger {
	return &Debugger{vm: vm, breakpoints: make(map[int]bool)}
}

func (d *Debugger) Enable()  { d.enabled = true }
func (d *Debugger) Disable() { d.enabled = false }

// SetStepMode enables or disables pausing after every instruction.
func (d *Debugger) SetStepMode(enabled bool) { d.stepMode = enabled }

// AddBreakpoint pauses execution before the instruction at ip.
func (d *Debugger) AddBreakpoint(ip int) { d.breakpoints[ip] = true }

// RemoveBreakpoint clears a previously set breakpoint.
func (d *Debugger) RemoveBreakpoint(ip int) { delete(d.breakpoints, ip) }

// ClearBreakpoints removes every breakpoint.
func (d *Debugger) ClearBreakpoints() { d.breakpoints = make(map[int]bool) }

// ShouldPause reports whether the dispatch loop should yield to Prompt
// before executing the instruction at ip.
func (d *Debugger) ShouldPause(ip int) bool {
	if d == nil || !d.enabled {
		return false
	}
	if d.stepMode {
		return true
	}
	return d.breakpoints[ip]
}

func (d *Debugger) decode() {
	if d.vm.program == d.program && d.instrs != nil {
		return
	}
	d.program = d.vm.program
	instrs, err := bytecode.Decode(d.vm.program)
	if err != nil {
		d.instrs = nil
		return
	}
	d.instrs = instrs
}

func (d *Debugger) showCurrentInstruction() {
	d.decode()
	inst, ok := d.instructionAt(d.vm.ip)
	if !ok {
		fmt.Println("no current instruction")
		return
	}
	fmt.Printf("  %4d: %s", inst.Offset, inst.Op)
	if inst.Op.ImmediateWidth() > 0 {
		fmt.Printf(" %d", inst.Operand)
	}
	fmt.Println()
}

func (d *Debugger) instructionAt(ip int) (bytecode.Instruction, bool) {
	for _, inst := range d.instrs {
		if inst.Offset == ip {
			return inst, true
		}
	}
	return bytecode.Instruction{}, false
}

func (d *Debugger) showStack() {
	fmt.Println("stack (top to bottom):")
	values := d.vm.stack.Values()
	if len(values) == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := len(values) - 1; i >= 0; i-- {
		fmt.Printf("  [%d] %s\n", i, values[i].String())
	}
}

func (d *Debugger) showCallStack() {
	fmt.Printf("call stack depth: %d\n", d.vm.stack.FrameDepth())
	frame := d.vm.stack.CurrentFrame()
	fmt.Printf("  current frame: base=%d return=%d\n", frame.Base, frame.ReturnAddr)
}

func (d *Debugger) dumpHeap() {
	spew.Dump(d.vm.registry)
}

func (d *Debugger) listInstructions() {
	d.decode()
	for _, inst := range d.instrs {
		marker := "  "
		switch {
		case inst.Offset == d.vm.ip:
			marker = "->"
		case d.breakpoints[inst.Offset]:
			marker = "*"
		}
		fmt.Printf("%s %4d: %s", marker, inst.Offset, inst.Op)
		if inst.Op.ImmediateWidth() > 0 {
			fmt.Printf(" %d", inst.Operand)
		}
		fmt.Println()
	}
}

func (d *Debugger) printHelp() {
	fmt.Println("debugger commands:")
	fmt.Println("  help, h, ?        show this help")
	fmt.Println("  continue, c       resume execution")
	fmt.Println("  step, s           pause after every instruction")
	fmt.Println("  next, n           execute one instruction")
	fmt.Println("  stack, st         show the value stack")
	fmt.Println("  callstack, cs     show the invocation stack")
	fmt.Println("  instruction, i    show the current instruction")
	fmt.Println("  heap              dump the GC registry")
	fmt.Println("  breakpoint <n>, b add a breakpoint at instruction n")
	fmt.Println("  delete <n>, d     remove a breakpoint at instruction n")
	fmt.Println("  list, ls          list every instruction")
	fmt.Println("  quit, q           abort execution")
}

// Prompt blocks on stdin for debugger commands until the user resumes
// or aborts execution. It returns false to abort the run.
func (d *Debugger) Prompt(vm *VM) bool {
	d.decode()
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("\n=== paused ===")
	d.showCurrentInstruction()

	for {
		fmt.Print("debug> ")
		if !scanner.Scan() {
			return false
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "help", "h", "?":
			d.printHelp()
		case "continue", "c":
			d.SetStepMode(false)
			return true
		case "step", "s":
			d.SetStepMode(true)
			return true
		case "next", "n":
			return true
		case "stack", "st":
			d.showStack()
		case "callstack", "cs":
			d.showCallStack()
		case "instruction", "i":
			d.showCurrentInstruction()
		case "heap":
			d.dumpHeap()
		case "breakpoint", "b":
			if len(parts) < 2 {
				fmt.Println("usage: breakpoint <ip>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid instruction number")
				continue
			}
			d.AddBreakpoint(ip)
			fmt.Printf("breakpoint set at %d\n", ip)
		case "delete", "d":
			if len(parts) < 2 {
				fmt.Println("usage: delete <ip>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid instruction number")
				continue
			}
			d.RemoveBreakpoint(ip)
			fmt.Printf("breakpoint removed at %d\n", ip)
		case "list", "ls":
			d.listInstructions()
		case "quit", "q":
			return false
		default:
			fmt.Printf("unknown command: %s (type 'help')\n", parts[0])
		}
	}
}
