package tabular

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mpcal/ports"
)

// Artifacts implements ports.ArtifactStore on the local filesystem
type Artifacts struct {
	withXLSX bool
}

var _ ports.ArtifactStore = (*Artifacts)(nil)

// NewArtifacts creates an artifact store; withXLSX adds an .xlsx copy of
// every table written
func NewArtifacts(withXLSX bool) *Artifacts {
	return &Artifacts{withXLSX: withXLSX}
}

func (a *Artifacts) WriteLines(path, header string, lines []string) error {
	return WriteLines(path, header, lines)
}

func (a *Artifacts) MergeTables(dir string) ([]string, [][]string, []string, error) {
	t, skipped, err := MergeCSVDir(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	return t.Headers, t.Rows, skipped, nil
}

func (a *Artifacts) WriteTable(path string, headers []string, rows [][]string) error {
	t := &Table{Headers: headers, Rows: rows}
	if err := WriteCSV(path, t); err != nil {
		return err
	}
	if a.withXLSX {
		return WriteXLSX(XLSXPath(path), t)
	}
	return nil
}

func (a *Artifacts) CopyFile(src, dst string) (bool, error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return true, out.Close()
}
