package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
)

// Extension is the suffix of source files picked up by List.
const Extension = ".csv"

// Source lists and reads raw telemetry tables.
type Source interface {
	// List returns the names of the readable tables in lexicographic order.
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) (record.Dataset, error)
}

// ReadError is returned when a source table cannot be read or is structurally malformed.
type ReadError struct {
	Source string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read source %s: %v", e.Source, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// DirSource reads CSV files from a local directory (non-recursive).
type DirSource struct {
	dir string
}

func NewDirSource(dir string) (*DirSource, error) {
	if dir == "" {
		return nil, errors.New("source directory is required")
	}
	return &DirSource{dir: dir}, nil
}

func (s *DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &ReadError{Source: s.dir, Err: err}
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *DirSource) Read(ctx context.Context, name string) (record.Dataset, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if err != nil {
		return record.Dataset{}, &ReadError{Source: path, Err: err}
	}
	defer f.Close()

	ds, err := ParseCSV(name, f)
	if err != nil {
		return record.Dataset{}, &ReadError{Source: path, Err: err}
	}
	return ds, nil
}
