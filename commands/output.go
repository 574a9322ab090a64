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

package commands

import (
	"fmt"
	"reflect"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Field is one named value of an action result
type Field struct {
	Key   string
	Value any
}

// Result is what an action returns when it passes. Summary is the passed
// record of the human output. Fields feed the bash and json outputs, in
// order.
type Result struct {
	Summary string
	Fields  []Field
}

// bashLine joins every value with spaces. List values are expanded.
func (r *Result) bashLine() string {
	var words []string
	for _, f := range r.Fields {
		v := reflect.ValueOf(f.Value)
		if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
			for i := 0; i < v.Len(); i++ {
				words = append(words, fmt.Sprint(v.Index(i).Interface()))
			}
			continue
		}
		words = append(words, fmt.Sprint(f.Value))
	}
	return strings.Join(words, " ")
}

// jsonLine writes the fields as one JSON object, keeping their order and
// separating items with ", " and keys with ": "
func (r *Result) jsonLine() (string, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)
	stream.WriteObjectStart()
	for i, f := range r.Fields {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(f.Key)
		stream.WriteVal(f.Value)
	}
	stream.WriteObjectEnd()
	if stream.Error != nil {
		return "", fmt.Errorf("fail to marshal the action result: %w", stream.Error)
	}
	return string(spaceSeparators(stream.Buffer())), nil
}

// spaceSeparators adds a space after every comma and colon of compact JSON
// that is not inside a string
func spaceSeparators(compact []byte) []byte {
	out := make([]byte, 0, len(compact)+len(compact)/4)
	inString, escaped := false, false
	for _, b := range compact {
		out = append(out, b)
		switch {
		case inString:
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
		case b == '"':
			inString = true
		case b == ',' || b == ':':
			out = append(out, ' ')
		}
	}
	return out
}
