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
	"time"

	"github.com/solidfire/sfadmin/sferrors"
)

// PollSpec says how long to wait between checks and how long to keep
// checking. Both are expressed in seconds and scaled by TimeSecond.
type PollSpec struct {
	Operation       string
	IntervalSeconds int
	TimeoutSeconds  int
}

// maxRounds bounds the loop independently of the time unit, so a zero
// TimeSecond still terminates after the same number of checks.
func (ps PollSpec) maxRounds() int {
	if ps.IntervalSeconds <= 0 {
		return ps.TimeoutSeconds
	}
	return ps.TimeoutSeconds / ps.IntervalSeconds
}

// PollUntil calls check until it returns true, an error, or the deadline is
// reached. The deadline is a wall-clock one as well as a bound on the number
// of checks.
func PollUntil(ctx context.Context, ps PollSpec, check func() (bool, error)) error {
	start := time.Now()
	timeout := Seconds(ps.TimeoutSeconds)
	interval := Seconds(ps.IntervalSeconds)
	maxRounds := ps.maxRounds()

	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if round >= maxRounds || (timeout > 0 && time.Since(start) >= timeout) {
			return &sferrors.TimeoutError{
				Operation: ps.Operation,
				Timeout:   time.Duration(ps.TimeoutSeconds) * time.Second,
			}
		}
		if err := Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
