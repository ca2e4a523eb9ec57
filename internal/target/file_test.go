package target

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTargets(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.txt")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSourceParsesIPAndPort(t *testing.T) {
	path := writeTargets(t, "10.0.0.1:25566", "10.0.0.2")
	src, err := NewFileSource(path, 25565)
	require.NoError(t, err)
	defer src.Close()

	targets := drain(t, src)
	require.Len(t, targets, 2)
	assert.Equal(t, Target{IP: "10.0.0.1", Port: 25566}, targets[0])
	assert.Equal(t, Target{IP: "10.0.0.2", Port: 25565}, targets[1])
}

func TestFileSourceSkipsBlankAndCommentLines(t *testing.T) {
	path := writeTargets(t, "# targets", "", "10.0.0.1", "  ", "# trailing comment")
	src, err := NewFileSource(path, 25565)
	require.NoError(t, err)
	defer src.Close()

	targets := drain(t, src)
	require.Len(t, targets, 1)
	assert.Equal(t, "10.0.0.1", targets[0].IP)
}

func TestFileSourceRejectsInvalidPort(t *testing.T) {
	path := writeTargets(t, "10.0.0.1:notaport")
	src, err := NewFileSource(path, 25565)
	require.NoError(t, err)
	defer src.Close()

	_, _, err = src.Next(context.Background())
	assert.Error(t, err)
}

func TestNewFileSourceMissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.txt"), 25565)
	assert.Error(t, err)
}
