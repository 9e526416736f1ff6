package cli

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	for _, path := range [][]string{
		{"start"},
		{"worker", "run"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"schema", "init"},
		{"load"},
		{"feed", "publish"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestSchemaInitRequiresConfirmation(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"schema", "init"})
	root.SetOut(&bytes.Buffer{})

	err := root.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, ErrNotConfirmed)
}

func TestSchemaInitAndLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_WRITER_DSN", "file:"+dir+"/cli.db")
	t.Setenv("OBS_ENABLE_METRICS", "false")
	t.Setenv("MESSAGING_ENABLED", "false")

	feed := dir + "/feed.json"
	require.NoError(t, writeFile(feed, `[{"name":"Alice","phone":"555-1","timestamp":1000,"items":[{"name":"Coffee","price":3.5}]}]`))

	out := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"schema", "init", "--yes"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "schema initialized")

	out.Reset()
	root = NewRootCommand()
	root.SetOut(out)
	root.SetArgs([]string{"load", "--file", feed})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), `"loaded": 1`)
	assert.Contains(t, out.String(), `"orders": 1`)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
