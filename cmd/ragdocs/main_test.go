package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(src, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(src, "returns.txt"),
		[]byte("返品は購入から30日以内に受け付けます。開封済みの商品は返品できません。"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "hours.txt"),
		[]byte("営業時間は平日の9時から18時までです。"), 0o600))

	cfg := `
source_dir: ` + src + `
data_dir: ` + filepath.Join(dir, "index") + `
retrieval:
  top_n: 1
embedder:
  type: hashing
  hashing:
    dimension: 256
  cache:
    type: memory
generator:
  type: extractive
  max_sentences: 1
log:
  level: error
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLI_EndToEnd(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg := writeConfig(t)

	out, err := run(t, "", "--config", cfg, "ingest")
	require.NoError(t, err, out)
	assert.Contains(t, out, "returns: 1 chunks stored")
	assert.Contains(t, out, "2 stored, 0 skipped, 0 failed")

	out, err = run(t, "", "--config", cfg, "ingest")
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 stored, 2 skipped, 0 failed")

	out, err = run(t, "", "--config", cfg, "retrieve", "--hits", "返品は何日以内ですか")
	require.NoError(t, err, out)
	assert.Contains(t, out, "returns_chunk_0")
	assert.Contains(t, out, "[returns]")
	assert.NotContains(t, out, "[hours]")

	out, err = run(t, "返品は何日以内ですか\n", "--config", cfg, "ask")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Enter your question:")
	assert.Contains(t, out, "返品は購入から30日以内に受け付けます。")
	assert.Contains(t, out, "Sources: returns")

	out, err = run(t, "", "--config", cfg, "stats")
	require.NoError(t, err, out)
	assert.Contains(t, out, "chunks:     2")
	assert.Contains(t, out, "file:       "+filepath.Join(filepath.Dir(cfg), "index", "collections.db"))

	_, err = run(t, "", "--config", cfg, "clear")
	assert.Error(t, err)

	out, err = run(t, "", "--config", cfg, "clear", "--yes")
	require.NoError(t, err, out)
	out, err = run(t, "", "--config", cfg, "stats")
	require.NoError(t, err, out)
	assert.Contains(t, out, "chunks:     0")
}

func TestCLI_EmptyQuery(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, "\n", "--config", cfg, "retrieve")
	assert.ErrorContains(t, err, "invalid query")
}

func TestCLI_GeminiNeedsKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: "+filepath.Join(dir, "index")+"\n"), 0o600))

	_, err := run(t, "", "--config", path, "retrieve", "q")
	assert.ErrorContains(t, err, "api key")

	// stats never touches the API
	out, err := run(t, "", "--config", path, "stats")
	require.NoError(t, err, out)
	assert.Contains(t, out, "chunks:     0")
}
