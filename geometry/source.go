package geometry

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/sjon/navindex"
)

// Source provides the models referenced by LOD sources.
type Source interface {
	Read(name string) (*Model, error)
}

// DirSource reads encoded models from a directory.
type DirSource struct {
	Dir string
}

func (s DirSource) Read(name string) (*Model, error) {
	path := filepath.Join(s.Dir, filepath.Clean("/"+name))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("could not read geometry source").
			WithType(navindex.ErrTypeGeometryLoad).
			WithTag("file", path).
			Wrap(err)
	}

	m, err := Decode(data)
	if err != nil {
		return nil, errors.New("could not decode geometry source").
			WithType(navindex.ErrTypeGeometryLoad).
			WithTag("file", path).
			Wrap(err)
	}
	return m, nil
}

// WriteFile encodes m to the file name of dir.
func WriteFile(dir, name string, m *Model) error {
	path := filepath.Join(dir, filepath.Clean("/"+name))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New("could not create geometry directory").
			WithTag("file", path).
			Wrap(err)
	}

	if err := os.WriteFile(path, Encode(m), 0o644); err != nil {
		return errors.New("could not write geometry source").
			WithTag("file", path).
			Wrap(err)
	}
	return nil
}

// MemorySource serves models kept in memory.
type MemorySource struct {
	mutex  sync.RWMutex
	models map[string]*Model
}

func (s *MemorySource) Set(name string, m *Model) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.models == nil {
		s.models = make(map[string]*Model)
	}
	s.models[name] = m
}

func (s *MemorySource) Read(name string) (*Model, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	m, ok := s.models[name]
	if !ok {
		return nil, errors.New("geometry source not found").
			WithType(navindex.ErrTypeGeometryLoad).
			WithTag("name", name)
	}
	return m, nil
}
