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
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-playground/validator/v10"

	"github.com/solidfire/sfadmin/sferrors"
)

// ParseIPv4 validates a single strict IPv4 argument
func ParseIPv4(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if _, err := IPToInt(value); err != nil {
		return "", sferrors.NewInvalidArgument(name, value, "not a valid IPv4 address")
	}
	return value, nil
}

// ParsePositiveInt accepts an int or a decimal string greater than zero
func ParsePositiveInt(name string, value any) (int, error) {
	n, err := parseInt(name, value)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, sferrors.NewInvalidArgument(name, value, "must be a positive integer")
	}
	return n, nil
}

func parseInt(name string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, sferrors.NewInvalidArgument(name, value, "not an integer")
		}
		return n, nil
	default:
		return 0, sferrors.NewInvalidArgument(name, value, "not an integer")
	}
}

// ParseSelection checks that value is one of choices
func ParseSelection(name, value string, choices []string) (string, error) {
	if !mapset.NewSet(choices...).Contains(value) {
		return "", sferrors.NewInvalidArgument(name, value,
			"must be one of {%s}", strings.Join(choices, ", "))
	}
	return value, nil
}

// ParseOptional applies parse to value only when it is set
func ParseOptional[T any](value *string, parse func(string) (T, error)) (*T, error) {
	if value == nil {
		return nil, nil
	}
	res, err := parse(*value)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

var (
	validatorInstance *validator.Validate
	validatorOnce     sync.Once

	// a release is either major.minor.patch.build or major.build
	releaseVersionRe = regexp.MustCompile(`^\d+\.\d+(\.\d+\.\d+)?$`)
)

// getValidator returns the shared struct validator. Field names in errors
// come from the `arg` tag so they match the command-line flag names.
func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("arg"), ",", 2)[0]
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
		mustRegister(v, "strictipv4", func(fl validator.FieldLevel) bool {
			return IsIPv4(fl.Field().String())
		})
		mustRegister(v, "strictipv4list", func(fl validator.FieldLevel) bool {
			ips, ok := fl.Field().Interface().([]string)
			if !ok || len(ips) == 0 {
				return false
			}
			for _, ip := range ips {
				if !IsIPv4(ip) {
					return false
				}
			}
			return true
		})
		mustRegister(v, "sfversion", func(fl validator.FieldLevel) bool {
			return releaseVersionRe.MatchString(fl.Field().String())
		})
		validatorInstance = v
	})
	return validatorInstance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("[Programmer error] fail to register validation %s: %v", tag, err))
	}
}

// ValidateOptions runs the `validate` tags of an options struct and converts
// the first failure into an InvalidArgumentError.
func ValidateOptions(options any) error {
	err := getValidator().Struct(options)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	return sferrors.NewInvalidArgument(fe.Field(), fe.Value(), describeTag(fe))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "strictipv4":
		return "not a valid IPv4 address"
	case "strictipv4list":
		return "must be a non-empty list of valid IPv4 addresses"
	case "sfversion":
		return "not a valid release version"
	case "oneof":
		return fmt.Sprintf("must be one of {%s}", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be %s %s characters long", bound, fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("must have %s %s elements", bound, fe.Param())
		}
		return fmt.Sprintf("must be %s %s", bound, fe.Param())
	case "eqfield":
		return fmt.Sprintf("must match %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
