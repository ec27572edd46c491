// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/gomlx/imgaug/pkg/support/fsutil"
	"github.com/gomlx/imgaug/pkg/support/xslices"
	"github.com/pkg/errors"
)

// ParseSettings from settings -- typically the contents of a flag set by the user.
// The settings are a list separated by ";": e.g.: "param1=value1;param2=value2;...".
//
// The params map holds pointers to the values to be set, indexed by the parameter name, e.g. the map
// returned by augment.PipelineConfig.Settings. The type of the pointer defines how the value is parsed.
// Supported types are pointers to: int, int32, int64, uint, uint32, uint64, float32, float64, bool,
// string, []string, []int and []float64 (lists are separated by ",").
//
// It returns the names of the parameters set, in order, and an error in case a parameter
// is unknown or the parsing failed.
//
// For integer types, "_" is removed: it allows one to enter large numbers using it as a separator, like
// in Go. E.g.: 1_000_000 = 1000000.
//
// An entry like "file:settings.txt" reads the settings from the file, one or more settings per line
// (separated by ";"), with lines starting with "#" considered comments.
//
// Example usage:
//
//	func main() {
//		config := augment.DefaultPipelineConfig(84)
//		settings := commandline.CreateSettingsFlag(config.Settings(), "")
//		flag.Parse()
//		_, err := commandline.ParseSettings(config.Settings(), *settings)
//		if err != nil { klog.Fatalf("%+v", err) }
//		fmt.Println(commandline.SprintSettings(config.Settings()))
//		...
//	}
func ParseSettings(params map[string]any, settings string) (paramsSet []string, err error) {
	settingsList := strings.Split(settings, ";")
	for _, setting := range settingsList {
		paramsSet, err = parseSetting(params, setting, paramsSet)
		if err != nil {
			return
		}
	}
	return
}

func parseSetting(params map[string]any, setting string, paramsSet []string) (newParamsSet []string, err error) {
	newParamsSet = paramsSet
	setting = strings.TrimSpace(setting)
	if setting == "" {
		return
	}
	if strings.HasPrefix(setting, "file:") {
		// Read parameters from a file.
		var filePath string
		filePath, err = fsutil.ReplaceTildeInDir(strings.TrimPrefix(setting, "file:"))
		if err != nil {
			return
		}
		var contents []byte
		contents, err = os.ReadFile(filePath)
		if err != nil {
			err = errors.Wrapf(err, "failed to read settings from file %q", filePath)
			return
		}
		lines := strings.Split(string(contents), "\n")
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			for _, setting := range strings.Split(line, ";") {
				newParamsSet, err = parseSetting(params, setting, newParamsSet)
				if err != nil {
					return
				}
			}
		}
		return
	}

	parts := strings.Split(setting, "=")
	if len(parts) != 2 {
		err = errors.Errorf("can't parse settings %q: each setting requires the format \"<param>=<value>\", got %q",
			setting, setting)
		return
	}
	paramName, valueStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	param, found := params[paramName]
	if !found {
		err = errors.Errorf("can't set parameter %q because it is not known, valid parameters are: %s",
			paramName, strings.Join(sortedKeys(params), ", "))
		return
	}

	// Parse value accordingly.
	switch p := param.(type) {
	case *int, *int32, *int64, *uint, *uint32, *uint64:
		err = json.Unmarshal([]byte(strings.ReplaceAll(valueStr, "_", "")), p)
	case *float64, *float32, *bool:
		err = json.Unmarshal([]byte(valueStr), p)
	case *string:
		*p = valueStr
	case *[]string:
		*p = strings.Split(valueStr, ",")
	case *[]int:
		var values []int
		values, err = parseList[int](valueStr, true)
		if err == nil {
			*p = values
		}
	case *[]float64:
		var values []float64
		values, err = parseList[float64](valueStr, false)
		if err == nil {
			*p = values
		}
	default:
		err = errors.Errorf("don't know how to parse type %T for setting parameter %q", param, setting)
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to parse value %q for parameter %q (current value is %#v)",
			valueStr, paramName, paramValue(param))
		return
	}
	newParamsSet = append(newParamsSet, paramName)
	return
}

// parseList parses a list of values separated by ",".
func parseList[T int | float64](valueStr string, isInt bool) ([]T, error) {
	var err error
	values := xslices.Map(strings.Split(valueStr, ","), func(str string) T {
		var value T
		str = strings.TrimSpace(str)
		if isInt {
			str = strings.ReplaceAll(str, "_", "")
		}
		if newErr := json.Unmarshal([]byte(str), &value); newErr != nil && err == nil {
			err = newErr
		}
		return value
	})
	return values, err
}

// paramValue dereferences the parameter pointer.
func paramValue(param any) any {
	v := reflect.ValueOf(param)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return param
	}
	return v.Elem().Interface()
}

func sortedKeys(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// CreateSettingsFlag creates a string flag with the given flagName (if empty it will be named
// "set") and with a description of the parameters in params and their current (default) values.
//
// The flag should be created before the call to `flag.Parse()`. See example in ParseSettings.
func CreateSettingsFlag(params map[string]any, flagName string) *string {
	if flagName == "" {
		flagName = "set"
	}
	var settings string
	flag.StringVar(&settings, flagName, "", SettingsUsage(params))
	return &settings
}

// SettingsUsage returns the description of the settings flag, listing the parameters in params.
func SettingsUsage(params map[string]any) string {
	parts := []string{
		`Set parameters. ` +
			`It should be a list of elements "param=value" separated by ";". ` +
			`It can also be given an entry like: "file:settings_file.txt", in ` +
			`which case the file will be read and the settings will be parsed, ` +
			`with new-lines working as ";" to separate settings and lines starting with "#" are considered comments. ` +
			`Current available parameters that can be set:`,
	}
	for _, key := range sortedKeys(params) {
		parts = append(parts, fmt.Sprintf("%q: default value is %v", key, paramValue(params[key])))
	}
	return strings.Join(parts, "\n")
}

// SprintSettings pretty-prints the current values of the parameters into a string.
func SprintSettings(params map[string]any) string {
	parts := make([]string, 0, len(params))
	for _, key := range sortedKeys(params) {
		value := paramValue(params[key])
		parts = append(parts, fmt.Sprintf("\t%q: (%T) %v", key, value, value))
	}
	return strings.Join(parts, "\n")
}

// SprintModifiedSettings pretty-prints the current values of the parameters listed in paramsSet
// (as returned by ParseSettings).
func SprintModifiedSettings(params map[string]any, paramsSet []string) string {
	var parts []string
	paramsSet = slices.Clone(paramsSet)
	slices.Sort(paramsSet)
	paramsSet = slices.Compact(paramsSet)
	for _, paramName := range paramsSet {
		param, found := params[paramName]
		if !found {
			continue
		}
		value := paramValue(param)
		parts = append(parts, fmt.Sprintf("\t%q: (%T) %v", paramName, value, value))
	}
	return strings.Join(parts, "\n")
}
