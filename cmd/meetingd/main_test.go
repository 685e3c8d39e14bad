package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "check", "seed", "token"})
}

func TestSeedThenToken(t *testing.T) {
	// GIVEN: a file database and a signing secret
	dir := t.TempDir()
	db := filepath.Join(dir, "meetings.db")
	t.Setenv("JWT_SECRET", "cli-secret")

	// WHEN: seeding the directory
	root := newRootCommand()
	root.SetArgs([]string{"seed", "--config", filepath.Join(dir, "none.yaml"), "--env", filepath.Join(dir, "none.env"), "--db", db, "--scenario", "directory"})
	require.NoError(t, root.Execute())

	// THEN: the file exists and a token can be issued for an active employee
	_, err := os.Stat(db)
	require.NoError(t, err)

	root = newRootCommand()
	root.SetArgs([]string{"token", "--config", filepath.Join(dir, "none.yaml"), "--env", filepath.Join(dir, "none.env"), "--db", db, "--employee", "7"})
	assert.NoError(t, root.Execute())

	root = newRootCommand()
	root.SetArgs([]string{"token", "--config", filepath.Join(dir, "none.yaml"), "--env", filepath.Join(dir, "none.env"), "--db", db, "--employee", "10"})
	assert.Error(t, root.Execute(), "inactive employee")
}
