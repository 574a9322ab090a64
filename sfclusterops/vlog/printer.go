/*
 (c) Copyright [2024] The sfadmin Authors.
 Licensed under the Apache License, Version 2.0 (the "License");
 You may not use this file except in compliance with the License.
 You may obtain a copy of the License at

 http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package vlog

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
)

// Level is the severity of one console record. Passed and Failed mark the
// terminal outcome of an action; Fake marks records produced by the
// simulator.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarningLevel
	ErrorLevel
	PassedLevel
	FailedLevel
	FakeLevel
)

var levelNames = map[Level]string{
	DebugLevel:   "DEBUG",
	InfoLevel:    "INFO",
	WarningLevel: "WARNING",
	ErrorLevel:   "ERROR",
	PassedLevel:  "PASSED",
	FailedLevel:  "FAILED",
	FakeLevel:    "FAKE",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// TimestampFormat is the layout of the console record timestamp
const TimestampFormat = "2006-01-02 15:04:05.000"

// console is the shared stderr sink. Emission is serialized by mu so that
// records from concurrent tasks never interleave.
type console struct {
	mu       sync.Mutex
	out      io.Writer
	silenced bool
	verbose  bool
	colored  bool
	now      func() time.Time
}

func (c *console) emit(level Level, prefix, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.silenced || c.out == nil {
		return
	}
	if level == DebugLevel && !c.verbose {
		return
	}
	label := level.String()
	if c.colored {
		label = colorize(level, label)
	}
	var sb strings.Builder
	sb.WriteString(c.now().Format(TimestampFormat))
	sb.WriteString(": ")
	sb.WriteString(label)
	sb.WriteString(" ")
	if prefix != "" {
		sb.WriteString(prefix)
		sb.WriteString(": ")
	}
	sb.WriteString(msg)
	sb.WriteString("\n")
	fmt.Fprint(c.out, sb.String())
}

func colorize(level Level, label string) string {
	switch level {
	case PassedLevel:
		return color.GreenString(label)
	case FailedLevel, ErrorLevel:
		return color.RedString(label)
	case WarningLevel:
		return color.YellowString(label)
	case FakeLevel:
		return color.CyanString(label)
	default:
		return label
	}
}

// Printer is a wrapper for the logger API that handles dual logging to the log
// file and the console. It reimplements the logr APIs sfadmin uses and adds
// the leveled console records.
type Printer struct {
	Log logr.Logger
	// Prefix is printed in front of every console record, usually the IP of
	// the node a task works on.
	Prefix string

	console *console
}

// MakePrinter builds a printer writing console records to out
func MakePrinter(log logr.Logger, out io.Writer) Printer {
	return Printer{
		Log:     log,
		console: &console{out: out, now: time.Now},
	}
}

// WithName will construct a new printer with the logger set with an additional
// name. The new printer inherits state from the current Printer.
func (p *Printer) WithName(logName string) Printer {
	return Printer{
		Log:     p.Log.WithName(logName),
		Prefix:  p.Prefix,
		console: p.console,
	}
}

// WithPrefix returns a printer sharing the same sinks whose console records
// are tagged with prefix. Nested prefixes are joined with a slash.
func (p *Printer) WithPrefix(prefix string) Printer {
	newPrefix := prefix
	if p.Prefix != "" && prefix != "" {
		newPrefix = p.Prefix + "/" + prefix
	}
	return Printer{
		Log:     p.Log.WithValues("prefix", newPrefix),
		Prefix:  newPrefix,
		console: p.console,
	}
}

// Silence drops every console record. It is used by the machine-readable
// output formats.
func (p *Printer) Silence() {
	p.withConsole(func(c *console) { c.silenced = true })
}

// SetVerbose turns debug records on the console on or off
func (p *Printer) SetVerbose(verbose bool) {
	p.withConsole(func(c *console) { c.verbose = verbose })
}

// SetColor turns console colors on or off
func (p *Printer) SetColor(colored bool) {
	p.withConsole(func(c *console) { c.colored = colored })
}

// SetOutput redirects the console records
func (p *Printer) SetOutput(out io.Writer) {
	p.withConsole(func(c *console) {
		c.out = out
		c.silenced = false
	})
}

// setClock is used by tests for deterministic timestamps
func (p *Printer) setClock(now func() time.Time) {
	p.withConsole(func(c *console) { c.now = now })
}

func (p *Printer) withConsole(fn func(c *console)) {
	if p.console == nil {
		p.console = &console{now: time.Now}
	}
	p.console.mu.Lock()
	defer p.console.mu.Unlock()
	fn(p.console)
}

// Reimplement the logr APIs that we use. These are simple pass through functions to the logr object.

// V sets the logging level. Can be daisy-chained to produce a log message for
// a given level.
func (p *Printer) V(level int) logr.Logger {
	return p.Log.V(level)
}

// Error displays an error message to the log.
func (p *Printer) Error(err error, msg string, keysAndValues ...any) {
	p.Log.Error(err, msg, keysAndValues...)
}

// Info displays an info message to the log.
func (p *Printer) Info(msg string, keysAndValues ...any) {
	p.Log.Info(msg, keysAndValues...)
}

// APIs to control printing to both the log and the console.

func (p *Printer) PrintDebug(msg string, v ...any) {
	fmsg := fmt.Sprintf(msg, v...)
	p.Log.V(1).Info(fmsg)
	p.print(DebugLevel, fmsg)
}

// PrintInfo will display the given message in the log and on the console.
func (p *Printer) PrintInfo(msg string, v ...any) {
	fmsg := fmt.Sprintf(msg, v...)
	p.Log.Info(fmsg)
	p.print(InfoLevel, fmsg)
}

// PrintWarning will display the given warning message in the log and on the
// console.
func (p *Printer) PrintWarning(msg string, v ...any) {
	fmsg := fmt.Sprintf(msg, v...)
	p.Log.Info(fmsg, "level", WarningLevel.String())
	p.print(WarningLevel, fmsg)
}

// PrintError will display the given error message in the log and on the
// console.
func (p *Printer) PrintError(msg string, v ...any) {
	fmsg := fmt.Sprintf(msg, v...)
	p.Log.Error(nil, fmsg)
	p.print(ErrorLevel, fmsg)
}

// PrintPassed records the successful outcome of an action
func (p *Printer) PrintPassed(msg string, v ...any) {
	fmsg := fmt.Sprintf(msg, v...)
	p.Log.Info(fmsg, "level", PassedLevel.String())
	p.print(PassedLevel, fmsg)
}

// PrintFailed records the failed outcome of an action
func (p *Printer) PrintFailed(msg string, v ...any) {
	fmsg := fmt.Sprintf(msg, v...)
	p.Log.Error(nil, fmsg, "level", FailedLevel.String())
	p.print(FailedLevel, fmsg)
}

// PrintFake is used by the simulator to tag what it pretends to do
func (p *Printer) PrintFake(msg string, v ...any) {
	fmsg := fmt.Sprintf(msg, v...)
	p.Log.V(1).Info(fmsg, "level", FakeLevel.String())
	p.print(FakeLevel, fmsg)
}

func (p *Printer) print(level Level, msg string) {
	if p.console == nil {
		return
	}
	p.console.emit(level, p.Prefix, msg)
}
