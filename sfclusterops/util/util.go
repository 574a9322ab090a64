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

package util

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"
)

// SliceDiff returns the elements of m missing from n, in the order of m
func SliceDiff[K comparable](m, n []K) []K {
	nSet := make(map[K]struct{}, len(n))
	for _, x := range n {
		nSet[x] = struct{}{}
	}

	var diff []K
	for _, x := range m {
		if _, found := nSet[x]; !found {
			diff = append(diff, x)
		}
	}
	return diff
}

func StringInArray(str string, list []string) bool {
	return slices.Contains(list, str)
}

// CheckPathExist is false only when the path is known not to exist
func CheckPathExist(filePath string) bool {
	_, err := os.Stat(filePath)
	return !os.IsNotExist(err)
}

// ResolveToAbsPath makes a file argument absolute. A leading ~ or ~/ is the
// home directory of the current user; ~ anywhere else is rejected.
func ResolveToAbsPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		if strings.Contains(path, "~") {
			return "", fmt.Errorf("cannot expand ~ in %q", path)
		}
		return filepath.Abs(path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~ in %q: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
}

// SplitList splits a comma-separated list, trimming blanks around every
// element. Empty elements are dropped.
func SplitList(list string) []string {
	var res []string
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			res = append(res, item)
		}
	}
	return res
}

const (
	FileExist    = 0
	FileNotExist = 1
	NoWritePerm  = 2
)

// Check whether the directory is write accessible
func CanWriteAccessDir(dirPath string) int {
	// check whether the path exists
	_, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return FileNotExist
		}
	}

	// check whether the path has write access
	if err := unix.Access(dirPath, unix.W_OK); err != nil {
		return NoWritePerm
	}

	return FileExist
}

// Sleep pauses for d or until ctx is done, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SecondsToElapsedStr formats a number of seconds as HH:MM:SS
func SecondsToElapsedStr(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	const secondsPerHour = 3600
	const secondsPerMinute = 60
	hours := seconds / secondsPerHour
	minutes := (seconds % secondsPerHour) / secondsPerMinute
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds%secondsPerMinute)
}

// TimestampToStr formats a unix timestamp the way the appliance reports dates
func TimestampToStr(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// TimeDeltaToStr renders a duration as a short human string, e.g. 1h2m3s
func TimeDeltaToStr(d time.Duration) string {
	return d.Round(time.Second).String()
}

func GetOptionalFlagMsg(message string) string {
	return message + " [Optional]"
}
