package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifacts_CopyFile(t *testing.T) {
	dir := t.TempDir()
	a := NewArtifacts(false)

	src := filepath.Join(dir, "eval_x.err")
	require.NoError(t, os.WriteFile(src, []byte("trace"), 0o644))

	dst := filepath.Join(dir, "error_logs", "eval_x.err")
	copied, err := a.CopyFile(src, dst)
	require.NoError(t, err)
	assert.True(t, copied)
	body, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "trace", string(body))

	copied, err = a.CopyFile(filepath.Join(dir, "absent.err"), dst)
	require.NoError(t, err)
	assert.False(t, copied)
}

func TestArtifacts_MergeAndWriteTable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("unit,algo\nu1,PL\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("unit,rho\nu2,0.5\n"), 0o644))

	a := NewArtifacts(true)
	headers, rows, skipped, err := a.MergeTables(dir)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, []string{"unit", "algo", "rho"}, headers)
	assert.Equal(t, [][]string{{"u1", "PL", ""}, {"u2", "", "0.5"}}, rows)

	out := filepath.Join(t.TempDir(), "merged.csv")
	require.NoError(t, a.WriteTable(out, headers, rows))
	assert.FileExists(t, XLSXPath(out))

	back, err := ReadTable(out)
	require.NoError(t, err)
	assert.Equal(t, headers, back.Headers)
	assert.Len(t, back.Rows, 2)
}
