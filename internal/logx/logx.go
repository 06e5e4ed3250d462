// Package logx is the VM's structured logger, styled after the leveled,
// terminal-aware logger the go-probeum/geth lineage carries alongside its
// bytecode interpreter (core/evm.go). Moth uses it for the handful of
// events worth surfacing outside of VM status codes: the VM's GC sweeps
// and the CLI's compile step.
package logx

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelTag = map[Level]string{
	LevelDebug: "DBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "EROR",
}

var levelColor = map[Level]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed, color.Bold),
}

// Logger writes leveled, optionally colorized records to an io.Writer.
// A zero Logger is not usable; construct with New.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
	color    bool
}

// New returns a Logger writing to out. Color is enabled automatically
// when out is a terminal, following the same isatty/colorable detection
// geth's log package uses to decide whether to emit ANSI escapes.
func New(out io.Writer) *Logger {
	useColor := false
	if f, ok := out.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		if useColor {
			out = colorable.NewColorable(f)
		}
	}
	return &Logger{out: out, minLevel: LevelInfo, color: useColor}
}

// SetLevel changes the minimum level that is actually written.
func (l *Logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = lvl
}

func (l *Logger) log(lvl Level, msg string, kv ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lvl < l.minLevel {
		return
	}
	tag := levelTag[lvl]
	if l.color {
		tag = levelColor[lvl].Sprint(tag)
	}
	line := fmt.Sprintf("%s[%s] %s", time.Now().UTC().Format("15:04:05.000"), tag, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		line += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	if lvl == LevelError {
		// Record one caller frame so a fatal VM status can be traced back
		// to the call site that logged it, without pulling in a full
		// stack-trace dependency for every record.
		if frames := stack.Trace().TrimRuntime(); len(frames) > 1 {
			line += fmt.Sprintf(" caller=%v", frames[1])
		}
	}
	fmt.Fprintln(l.out, line)
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(LevelDebug, msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(LevelInfo, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(LevelWarn, msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(LevelError, msg, kv...) }

// Default is the package-level logger used by components that are not
// handed one explicitly: every new VM logs through it, and so does the
// CLI.
var Default = New(os.Stderr)
