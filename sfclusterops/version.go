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

package sfclusterops

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/solidfire/sfadmin/sferrors"
)

// SolidFireVersion is an element OS version. The full form is
// major.minor.patch.build; older tooling also reports major.build, which
// compares as major.0.0.build against other two-part versions only.
type SolidFireVersion struct {
	Major   int
	Minor   int
	Patch   int
	Build   int
	TwoPart bool
}

var (
	fourPartVersionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)\.(\d+)$`)
	twoPartVersionRe  = regexp.MustCompile(`^(\d+)\.(\d+)$`)
)

// ParseVersion parses "9.0.0.1000" or "9.1000"
func ParseVersion(ver string) (SolidFireVersion, error) {
	clean := strings.TrimSpace(ver)
	if m := fourPartVersionRe.FindStringSubmatch(clean); m != nil {
		parts, err := atoiAll(m[1:])
		if err != nil {
			return SolidFireVersion{}, sferrors.NewInvalidArgument("version", ver, "%v", err)
		}
		return SolidFireVersion{Major: parts[0], Minor: parts[1], Patch: parts[2], Build: parts[3]}, nil
	}
	if m := twoPartVersionRe.FindStringSubmatch(clean); m != nil {
		parts, err := atoiAll(m[1:])
		if err != nil {
			return SolidFireVersion{}, sferrors.NewInvalidArgument("version", ver, "%v", err)
		}
		return SolidFireVersion{Major: parts[0], Build: parts[1], TwoPart: true}, nil
	}
	return SolidFireVersion{}, sferrors.NewInvalidArgument("version", ver, "not a valid version")
}

func atoiAll(strs []string) ([]int, error) {
	res := make([]int, len(strs))
	for i, s := range strs {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		res[i] = n
	}
	return res, nil
}

func (v SolidFireVersion) String() string {
	if v.TwoPart {
		return fmt.Sprintf("%d.%d", v.Major, v.Build)
	}
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
}

// APIVersion is the JSON-RPC endpoint version matching this release
func (v SolidFireVersion) APIVersion() float64 {
	return float64(v.Major) + float64(v.Minor)/10
}

// Compare returns -1, 0 or 1. A two-part version cannot be compared with a
// four-part one.
func (v SolidFireVersion) Compare(other SolidFireVersion) (int, error) {
	if v.TwoPart != other.TwoPart {
		return 0, sferrors.NewInvalidArgument("version", other.String(),
			"cannot compare %s with %s", v, other)
	}
	a := []int{v.Major, v.Minor, v.Patch, v.Build}
	b := []int{other.Major, other.Minor, other.Patch, other.Build}
	for i := range a {
		if a[i] < b[i] {
			return -1, nil
		}
		if a[i] > b[i] {
			return 1, nil
		}
	}
	return 0, nil
}

// Equal is true only for versions of the same form with the same fields
func (v SolidFireVersion) Equal(other SolidFireVersion) bool {
	return v == other
}

// SupportedAPIVersions are the endpoint versions the appliance serves
var SupportedAPIVersions = []float64{
	0.0, 1.0, 2.0, 3.0, 4.0, 5.0, 6.0,
	7.0, 7.1, 7.2, 7.3, 7.4,
	8.0, 8.1, 8.2, 8.3, 8.4,
	9.0,
}

// FormatAPIVersion renders an endpoint version as it appears in the URL
func FormatAPIVersion(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// ParseAPIVersion accepts "9.0" or "9"
func ParseAPIVersion(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0, sferrors.NewInvalidArgument("api-version", s, "not a valid API version")
	}
	return roundAPIVersion(v), nil
}

func roundAPIVersion(v float64) float64 {
	return math.Round(v*10) / 10
}

// SelectAPIVersion picks the endpoint version to use against a server whose
// current version and supported versions are known. The requested version is
// kept when the server serves it; otherwise the greatest supported version
// not above it is used. Asking for a major version the server does not know
// at all is an xUnknownAPIVersion error.
func SelectAPIVersion(requested, current float64, supported []float64) (float64, error) {
	requested = roundAPIVersion(requested)
	current = roundAPIVersion(current)
	if len(supported) == 0 {
		supported = []float64{current}
	}
	sorted := make([]float64, 0, len(supported))
	for _, v := range supported {
		sorted = append(sorted, roundAPIVersion(v))
	}
	slices.Sort(sorted)

	if requested <= current && containsVersion(sorted, requested) {
		return requested, nil
	}
	highest := math.Max(sorted[len(sorted)-1], current)
	if math.Floor(requested) > math.Floor(highest) {
		return 0, sferrors.NewAPIError(sferrors.UnknownAPIVersion,
			fmt.Sprintf("API version %s is not supported, highest supported version is %s",
				FormatAPIVersion(requested), FormatAPIVersion(highest)))
	}
	limit := math.Min(requested, current)
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i] <= limit {
			return sorted[i], nil
		}
	}
	return 0, sferrors.NewAPIError(sferrors.UnknownAPIVersion,
		fmt.Sprintf("no supported API version at or below %s", FormatAPIVersion(requested)))
}

func containsVersion(sorted []float64, v float64) bool {
	_, found := slices.BinarySearch(sorted, v)
	return found
}
