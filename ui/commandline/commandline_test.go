// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testParams struct {
	x         float64
	y         int
	z         bool
	s         string
	u         uint64
	listInt   []int
	listFloat []float64
	listStr   []string
}

func (p *testParams) settings() map[string]any {
	return map[string]any{
		"x":          &p.x,
		"y":          &p.y,
		"z":          &p.z,
		"s":          &p.s,
		"u":          &p.u,
		"list_int":   &p.listInt,
		"list_float": &p.listFloat,
		"list_str":   &p.listStr,
	}
}

func TestParseSettings(t *testing.T) {
	p := &testParams{x: 11.0, y: 7, s: "foo"}
	params := p.settings()

	paramsSet, err := ParseSettings(params, "x=13;z=true;y=1_000;s=bar;u=3;list_int=1,3,7;list_float=0.1,1.2,3e3;list_str=a,b;")
	require.NoError(t, err)
	require.Equal(t, []string{"x", "z", "y", "s", "u", "list_int", "list_float", "list_str"}, paramsSet)
	assert.Equal(t, 13.0, p.x)
	assert.Equal(t, 1000, p.y)
	assert.True(t, p.z)
	assert.Equal(t, "bar", p.s)
	assert.Equal(t, uint64(3), p.u)
	assert.Equal(t, []int{1, 3, 7}, p.listInt)
	assert.Equal(t, []float64{0.1, 1.2, 3e3}, p.listFloat)
	assert.Equal(t, []string{"a", "b"}, p.listStr)

	// Spaces are trimmed.
	_, err = ParseSettings(params, " x = 2.5 ; y=3 ")
	require.NoError(t, err)
	assert.Equal(t, 2.5, p.x)
	assert.Equal(t, 3, p.y)

	// Parameter "q" is unknown.
	_, err = ParseSettings(params, "q=3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list_float")

	// Cannot set the wrong type of value, and the value is left unchanged.
	_, err = ParseSettings(params, "y=3.14")
	require.Error(t, err)
	assert.Equal(t, 3, p.y)
	_, err = ParseSettings(params, "u=-1")
	require.Error(t, err)
	_, err = ParseSettings(params, "list_int=1,x")
	require.Error(t, err)
	assert.Equal(t, []int{1, 3, 7}, p.listInt)

	// Malformed setting.
	_, err = ParseSettings(params, "x")
	require.Error(t, err)
	_, err = ParseSettings(params, "x=1=2")
	require.Error(t, err)

	// Unsupported type.
	_, err = ParseSettings(map[string]any{"c": new(complex128)}, "c=1")
	require.Error(t, err)
}

func TestParseSettingsFile(t *testing.T) {
	p := &testParams{}
	params := p.settings()
	filePath := filepath.Join(t.TempDir(), "settings.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("# Comment\nx=0.5\n\ny=2;z=true\n"), 0o644))
	paramsSet, err := ParseSettings(params, "file:"+filePath+";s=after")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z", "s"}, paramsSet)
	assert.Equal(t, 0.5, p.x)
	assert.Equal(t, 2, p.y)
	assert.True(t, p.z)
	assert.Equal(t, "after", p.s)

	_, err = ParseSettings(params, "file:"+filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestSprintSettings(t *testing.T) {
	p := &testParams{x: 1.5, y: 3}
	params := p.settings()
	out := SprintSettings(params)
	assert.Contains(t, out, "\"x\": (float64) 1.5")
	assert.Contains(t, out, "\"y\": (int) 3")
	assert.Less(t, strings.Index(out, "\"list_float\""), strings.Index(out, "\"x\""), "parameters must be sorted")

	modified := SprintModifiedSettings(params, []string{"y", "x", "y", "unknown"})
	assert.Equal(t, "\t\"x\": (float64) 1.5\n\t\"y\": (int) 3", modified)

	usage := SettingsUsage(params)
	assert.Contains(t, usage, "\"y\": default value is 3")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.23s", FormatDuration(1234567890*time.Nanosecond))
	assert.Equal(t, "12.35ms", FormatDuration(12345678*time.Nanosecond))
	assert.Equal(t, "1m2s", FormatDuration(62400*time.Millisecond))
	assert.Equal(t, "0.00s", FormatDuration(0))
}

func TestSummaryTable(t *testing.T) {
	table := SummaryTable("Summary", [][2]string{{"Images", "12"}, {"Written", "1.2 MB"}})
	for _, s := range []string{"Summary", "Images", "12", "Written", "1.2 MB"} {
		assert.Contains(t, table, s)
	}
}

func TestProgressBar(t *testing.T) {
	var calls int
	pBar := NewProgressBar(10, "images", func() (string, string) {
		calls++
		return "Extra", "value"
	})
	for range 10 {
		pBar.Add(1)
	}
	pBar.Add(0)
	pBar.Done()
	assert.Greater(t, calls, 0)
}
