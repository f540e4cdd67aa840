package main

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signhub/signhub/internal/platform/db"
)

func TestRootCmdRegistersSubcommands(t *testing.T) {
	cmd := rootCmd(slog.Default())
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"up", "down", "goto", "force", "version"} {
		assert.True(t, names[want], "missing %s", want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("dsn"))
}

func TestGotoRejectsNonNumericVersion(t *testing.T) {
	opened := false
	cmd := gotoCmd(slog.Default(), func() (*db.Migrator, error) {
		opened = true
		return nil, errors.New("unexpected")
	})
	cmd.SetArgs([]string{"latest"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid version")
	assert.False(t, opened)
}

func TestWithMigratorPropagatesOpenError(t *testing.T) {
	boom := errors.New("dial tcp: refused")
	err := withMigrator(func() (*db.Migrator, error) { return nil, boom }, func(*db.Migrator) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.ErrorIs(t, err, boom)
}
