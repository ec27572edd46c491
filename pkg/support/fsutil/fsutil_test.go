// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceTildeInDir(t *testing.T) {
	usr, err := user.Current()
	require.NoError(t, err)

	for in, want := range map[string]string{
		"":             "",
		"/tmp/x":       "/tmp/x",
		"relative/dir": "relative/dir",
		"~":            usr.HomeDir,
		"~/work/out":   filepath.Join(usr.HomeDir, "work/out"),
	} {
		got, err := ReplaceTildeInDir(in)
		require.NoError(t, err, "dir=%q", in)
		assert.Equal(t, want, got, "dir=%q", in)
	}

	_, err = ReplaceTildeInDir("~user_that_does_not_exist_42/x")
	assert.Error(t, err)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	exists, err := FileExists(dir)
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := EnsureDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	exists, err = FileExists(dir)
	require.NoError(t, err)
	assert.True(t, exists)

	// Idempotent.
	_, err = EnsureDir(dir)
	require.NoError(t, err)
}
