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
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonglil/buflogr"
)

func fixedClock() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestPrinterRecordFormat(t *testing.T) {
	var logStr, console bytes.Buffer
	p := MakePrinter(buflogr.NewWithBuffer(&logStr), &console)
	p.setClock(fixedClock)

	p.PrintInfo("adding %d nodes", 2)
	task := p.WithPrefix("10.1.1.5")
	task.PrintPassed("Successfully added %s to cluster", "10.1.1.5")

	lines := strings.Split(strings.TrimSpace(console.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-01-02 03:04:05.000: INFO adding 2 nodes", lines[0])
	assert.Equal(t, "2024-01-02 03:04:05.000: PASSED 10.1.1.5: Successfully added 10.1.1.5 to cluster", lines[1])

	// the same messages reach the file logger
	assert.Contains(t, logStr.String(), "adding 2 nodes")
	assert.Contains(t, logStr.String(), "Successfully added 10.1.1.5 to cluster")
}

func TestPrinterLevels(t *testing.T) {
	var console bytes.Buffer
	p := MakePrinter(buflogr.New(), &console)

	// debug only shows when verbose
	p.PrintDebug("hidden")
	assert.NotContains(t, console.String(), "hidden")
	p.SetVerbose(true)
	p.PrintDebug("shown")
	assert.Contains(t, console.String(), "DEBUG shown")

	p.PrintWarning("careful")
	p.PrintError("broken")
	p.PrintFailed("Failed to add 10.1.1.5")
	p.PrintFake("power on 10.1.1.5")
	out := console.String()
	assert.Contains(t, out, "WARNING careful")
	assert.Contains(t, out, "ERROR broken")
	assert.Contains(t, out, "FAILED Failed to add 10.1.1.5")
	assert.Contains(t, out, "FAKE power on 10.1.1.5")

	// silenced printers share the console with their children
	child := p.WithPrefix("node")
	p.Silence()
	console.Reset()
	child.PrintPassed("nothing")
	assert.Empty(t, console.String())
}

func TestPrinterConcurrentRecordsDoNotInterleave(t *testing.T) {
	var console bytes.Buffer
	p := MakePrinter(buflogr.New(), &console)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task := p.WithPrefix(fmt.Sprintf("10.0.0.%d", i))
			task.PrintInfo("record %d", i)
		}(i)
	}
	wg.Wait()
	lines := strings.Split(strings.TrimSpace(console.String()), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		assert.Contains(t, line, ": INFO 10.0.0.")
	}
}

func TestNestedPrefix(t *testing.T) {
	p := MakePrinter(buflogr.New(), nil)
	child := p.WithPrefix("10.1.1.5")
	grandChild := child.WithPrefix("drives")
	assert.Equal(t, "10.1.1.5/drives", grandChild.Prefix)
	assert.Equal(t, "PASSED", PassedLevel.String())
}

func TestNewFileLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "sub", LogFileName)
	logger, err := NewFileLogger(logFile)
	require.NoError(t, err)
	logger.Info("hello")
	assert.FileExists(t, logFile)

	logger, err = NewFileLogger("")
	assert.NoError(t, err)
	logger.Info("discarded")
}

func TestSetup(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), LogFileName)
	var out bytes.Buffer
	p, err := Setup(logFile, &out)
	require.NoError(t, err)
	p.PrintInfo("to both sinks")
	assert.Contains(t, out.String(), "INFO to both sinks")
	assert.FileExists(t, logFile)
}
