package vector

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	indexFile = "index.gob"
	metaFile  = "meta.json"
)

// Store persists one index per deployment as a vector artifact plus a
// parallel metadata artifact under dir. Both files are written to temp paths
// and renamed, so a concurrent Load never observes a half-written index.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

type indexArtifact struct {
	Dim     int
	Vectors [][]float32
}

// Save writes the index and its metadata. Metadata is written first so the
// vector artifact, which Load keys on, is the last thing to appear.
func (s *Store) Save(ix *Index) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	if err := s.writeMeta(ix.Metas()); err != nil {
		return err
	}
	return s.writeVectors(ix)
}

// Load reconstructs the persisted index. Returns ErrIndexNotFound when no
// index has been saved yet; callers treat that as "no documents available".
func (s *Store) Load() (*Index, error) {
	indexPath := filepath.Join(s.dir, indexFile)

	f, err := os.Open(indexPath) // #nosec G304 -- path is from application config
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIndexNotFound
		}
		return nil, fmt.Errorf("open index artifact: %w", err)
	}
	defer f.Close()

	var art indexArtifact
	if err := gob.NewDecoder(f).Decode(&art); err != nil {
		return nil, fmt.Errorf("decode index artifact: %w", err)
	}

	metaPath := filepath.Join(s.dir, metaFile)
	data, err := os.ReadFile(metaPath) // #nosec G304 -- path is from application config
	if err != nil {
		return nil, fmt.Errorf("read metadata artifact: %w", err)
	}

	var metas []Metadata
	if err := json.Unmarshal(data, &metas); err != nil {
		return nil, fmt.Errorf("decode metadata artifact: %w", err)
	}

	ix, err := Build(art.Vectors, metas)
	if err != nil {
		return nil, fmt.Errorf("reload index: %w", err)
	}
	if ix.Dimension() != art.Dim {
		return nil, fmt.Errorf("index artifact dimension %d does not match vectors (%d)", art.Dim, ix.Dimension())
	}
	return ix, nil
}

func (s *Store) writeVectors(ix *Index) error {
	tmp, err := os.CreateTemp(s.dir, indexFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp index artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	art := indexArtifact{Dim: ix.Dimension(), Vectors: ix.Vectors()}
	if err := gob.NewEncoder(tmp).Encode(art); err != nil {
		tmp.Close()
		return fmt.Errorf("encode index artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, indexFile))
}

func (s *Store) writeMeta(metas []Metadata) error {
	tmp, err := os.CreateTemp(s.dir, metaFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp metadata artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(metas); err != nil {
		tmp.Close()
		return fmt.Errorf("encode metadata artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, metaFile))
}
