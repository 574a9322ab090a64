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

package simulator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/util"
)

const (
	snapshotPrefix     = "cluster-"
	snapshotSuffix     = ".json"
	snapshotTimeFormat = "20060102-150405"
	snapshotPerm       = 0644
	snapshotDir        = 0755

	// snapshots taken within the same second get increasing sequence numbers
	snapshotMaxSeq = 1000

	// SnapshotsKept is the number of snapshots left in a directory
	SnapshotsKept = 10
)

// SaveSnapshot writes the whole simulated state to
// <dir>/cluster-<timestamp>-<seq>.json and prunes all but the newest
// snapshots. It returns the path written. An existing snapshot is never
// overwritten.
func (s *Simulator) SaveSnapshot(dir string) (string, error) {
	switch util.CanWriteAccessDir(dir) {
	case util.FileNotExist:
		if err := os.MkdirAll(dir, snapshotDir); err != nil {
			return "", fmt.Errorf("fail to create snapshot directory %s: %w", dir, err)
		}
	case util.NoWritePerm:
		return "", fmt.Errorf("snapshot directory %s is not writable", dir)
	}

	s.mu.Lock()
	stamp := s.now().Format(snapshotTimeFormat)
	data, err := json.MarshalIndent(s.st, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("fail to marshal simulator state: %w", err)
	}

	path, err := writeNewSnapshot(dir, stamp, data)
	if err != nil {
		return "", err
	}
	s.log.V(1).Info("Saved simulator snapshot", "path", path)
	return path, pruneSnapshots(dir)
}

// writeNewSnapshot creates the first free cluster-<stamp>-<seq>.json. The
// zero-padded sequence keeps the names sorting chronologically.
func writeNewSnapshot(dir, stamp string, data []byte) (string, error) {
	for seq := 0; seq < snapshotMaxSeq; seq++ {
		path := filepath.Join(dir, fmt.Sprintf("%s%s-%03d%s", snapshotPrefix, stamp, seq, snapshotSuffix))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, snapshotPerm)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("fail to create snapshot %s: %w", path, err)
		}
		_, err = f.Write(data)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return "", fmt.Errorf("fail to write snapshot %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("too many snapshots for %s in %s", stamp, dir)
}

// ListSnapshots returns the snapshot files in dir, oldest first
func ListSnapshots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), snapshotPrefix) && strings.HasSuffix(e.Name(), snapshotSuffix) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	// the timestamp format sorts chronologically
	sort.Strings(files)
	return files, nil
}

func pruneSnapshots(dir string) error {
	files, err := ListSnapshots(dir)
	if err != nil {
		return err
	}
	for len(files) > SnapshotsKept {
		if err := os.Remove(files[0]); err != nil {
			return fmt.Errorf("fail to remove old snapshot %s: %w", files[0], err)
		}
		files = files[1:]
	}
	return nil
}

// LoadSnapshot replaces the simulated state with a saved snapshot. Injected
// failures are kept.
func (s *Simulator) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("fail to read snapshot %s: %w", path, err)
	}
	var st clusterState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("fail to parse snapshot %s: %w", path, err)
	}
	if st.NextIDs == nil {
		st.NextIDs = map[string]int{}
	}
	if st.AsyncResults == nil {
		st.AsyncResults = map[int]*sfclusterops.AsyncResult{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = &st
	return nil
}
