package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/revq/internal/domain"
	"github.com/conorfennell/revq/internal/knol"
	"github.com/conorfennell/revq/internal/storage"
)

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"frobnicate"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "Usage: revq")
}

func TestRunImportDueAnswer(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "revq.db")

	db, err := storage.Open(dbPath)
	require.NoError(t, err)
	_, err = db.CreateSet(context.Background(), domain.Set{ID: "set-1", OwnerID: "alice", Name: "Biology", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "set.md"), []byte("Q: q1.png\nA: a1.png\n"), 0o644))

	common := []string{"--db", dbPath, "--log-level", "error"}
	ctx := context.Background()

	var stdout, stderr bytes.Buffer
	args := append([]string{"import", "--owner", "alice", "--set", "set-1"}, common...)
	require.NoError(t, run(ctx, append(args, src), &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Found 1 items, 1 new")

	id := knol.Hash("set-1", "q1.png", "a1.png")

	stdout.Reset()
	require.NoError(t, run(ctx, append([]string{"due", "--owner", "alice"}, common...), &stdout, &stderr))
	assert.Equal(t, id, strings.TrimSpace(stdout.String()))

	stdout.Reset()
	args = append([]string{"answer", "--owner", "alice", "--item", id, "--remembered=false"}, common...)
	require.NoError(t, run(ctx, args, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "interval 1 days")
	assert.Contains(t, stdout.String(), "lapses 1")

	stdout.Reset()
	require.NoError(t, run(ctx, append([]string{"due", "--owner", "alice"}, common...), &stdout, &stderr))
	assert.Empty(t, strings.TrimSpace(stdout.String()))

	err = run(ctx, append([]string{"answer", "--owner", "bob", "--item", id}, common...), &stdout, &stderr)
	require.Error(t, err)
}
