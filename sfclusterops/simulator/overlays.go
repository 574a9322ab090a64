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
	"fmt"
	"strings"

	"github.com/solidfire/sfadmin/sferrors"
)

// AllMethods matches every method in a FailureSpec
const AllMethods = "all"

// AlwaysFail makes a FailureSpec fail every matching call
const AlwaysFail = -1

// DefaultFailureName is the error name of an injected failure when the spec
// does not give one
const DefaultFailureName = "xSimulatedFailure"

// FailureSpec describes calls that must fail. After PreSuccessCount normal
// replies, the next FailCount calls to Method fail; AlwaysFail fails them
// all. With Random each candidate call fails with probability one half.
type FailureSpec struct {
	Method          string
	Exception       string
	Message         string
	Retryable       bool
	FailCount       int
	PreSuccessCount int
	Random          bool
}

type failureState struct {
	spec        FailureSpec
	successLeft int
	failLeft    int
}

func (f *failureState) matches(method string) bool {
	return f.spec.Method == AllMethods || f.spec.Method == method
}

func (f *failureState) errorName() string {
	name := f.spec.Exception
	if name == "" {
		name = DefaultFailureName
	}
	if f.spec.Retryable && !sferrors.IsRetryableName(name) {
		name = sferrors.RetryablePrefix + strings.TrimPrefix(name, "x")
	}
	return name
}

// InjectFailure installs spec until the returned restore func is called
func (s *Simulator) InjectFailure(spec FailureSpec) (restore func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	failLeft := spec.FailCount
	if failLeft == 0 {
		failLeft = 1
	}
	f := &failureState{spec: spec, successLeft: spec.PreSuccessCount, failLeft: failLeft}
	s.failures = append(s.failures, f)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, other := range s.failures {
			if other == f {
				s.failures = append(s.failures[:i], s.failures[i+1:]...)
				return
			}
		}
	}
}

// injectedFailure is called with the mutex held for every RPC
func (s *Simulator) injectedFailure(method string) error {
	for _, f := range s.failures {
		if !f.matches(method) {
			continue
		}
		if f.successLeft > 0 {
			f.successLeft--
			continue
		}
		if f.failLeft == 0 {
			continue
		}
		if f.spec.Random && s.rng.Intn(2) == 0 {
			continue
		}
		if f.failLeft > 0 {
			f.failLeft--
		}
		msg := f.spec.Message
		if msg == "" {
			msg = fmt.Sprintf("Simulated failure of %s", method)
		}
		s.log.PrintFake("Failing %s with %s", method, f.errorName())
		return &sferrors.APIError{Name: f.errorName(), HTTPStatus: 500, Message: msg}
	}
	return nil
}

// ClusterVersion makes the cluster report version v until restore is called
func (s *Simulator) ClusterVersion(v string) (restore func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.st.Version
	s.st.Version = v
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.st.Version = old
	}
}

// APIVersion limits the served endpoint versions to highest and below,
// without the removed ones, until restore is called.
func (s *Simulator) APIVersion(highest float64, remove ...float64) (restore func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oldHighest, oldRemoved := s.st.HighestAPIVersion, s.st.RemovedAPIs
	s.st.HighestAPIVersion = highest
	s.st.RemovedAPIs = append([]float64(nil), remove...)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.st.HighestAPIVersion = oldHighest
		s.st.RemovedAPIs = oldRemoved
	}
}
