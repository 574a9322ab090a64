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

// Package vlog is the sfadmin logger: a logr logger writing JSON records to
// a debug log file, plus leveled console records on stderr.
package vlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

const (
	LogDirPerm    = 0755
	LogPermission = 0644
	// LogFileName is the debug log file under the user's config directory
	LogFileName = "sfadmin.log"
)

var (
	globalLogger     Printer
	globalLoggerOnce sync.Once
)

// GetGlobalLogger returns the process-wide printer used by work that is not
// tied to one command run. It discards the log file records and writes
// console records to stderr.
func GetGlobalLogger() *Printer {
	globalLoggerOnce.Do(func() {
		globalLogger = MakePrinter(logr.Discard(), os.Stderr)
		globalLogger.SetColor(term.IsTerminal(int(os.Stderr.Fd())))
	})
	return &globalLogger
}

// DefaultLogPath is $HOME/.config/sfadmin/sfadmin.log
func DefaultLogPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), LogFileName)
	}
	return filepath.Join(dir, "sfadmin", LogFileName)
}

// Setup opens the debug log file and builds a printer writing to it and to
// console. An empty path keeps the log file disabled.
func Setup(logFile string, console io.Writer) (Printer, error) {
	logger, err := NewFileLogger(logFile)
	if err != nil {
		return Printer{}, fmt.Errorf("fail to set up log file %s: %w", logFile, err)
	}
	p := MakePrinter(logger, console)
	logStartupMessage(&p)
	return p, nil
}

// NewFileLogger builds a logr logger backed by zap that appends JSON records
// to logFile.
func NewFileLogger(logFile string) (logr.Logger, error) {
	if logFile == "" {
		return logr.Discard(), nil
	}
	if err := os.MkdirAll(filepath.Dir(logFile), LogDirPerm); err != nil {
		return logr.Discard(), err
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, LogPermission)
	if err != nil {
		return logr.Discard(), err
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(f),
		// logr V(1) maps to zap debug
		zap.NewAtomicLevelAt(zapcore.DebugLevel),
	)
	return zapr.NewLogger(zap.New(core)), nil
}

func logStartupMessage(p *Printer) {
	hostname, _ := os.Hostname()
	p.Info("New log for process", "pid", os.Getpid(), "args", os.Args,
		"hostname", hostname, "uid", os.Getuid())
}
