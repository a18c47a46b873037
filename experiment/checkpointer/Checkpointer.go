// Package checkpointer implements saving and loading of training state
// at epoch boundaries
package checkpointer

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Latest selects the checkpoint with the greatest epoch in Store.Load
const Latest = -1

// ErrNotFound is wrapped by errors returned when a checkpoint does not
// exist
var ErrNotFound = errors.New("checkpoint not found")

// Serializable is an object that can be saved/serialized
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}

// Checkpointer checkpoints a serializable object at the end of an
// epoch
type Checkpointer interface {
	Checkpoint(epoch int) error
}

// Error is returned by Store operations
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound returns whether err reports a missing checkpoint
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store saves checkpoints as gob files in a single directory, one file
// per epoch
type Store struct {
	dir string
}

// NewStore returns a new Store which keeps checkpoints in dir. The
// directory is created on the first Save if it does not exist.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory of the Store
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the path of the checkpoint for an epoch
func (s *Store) Path(epoch int) string {
	return filepath.Join(s.dir, filename(epoch))
}

// Save saves obj as the checkpoint of epoch, replacing any existing
// checkpoint for that epoch
func (s *Store) Save(epoch int, obj Serializable) error {
	if epoch < 0 {
		return &Error{"save", fmt.Errorf("epoch must be non-negative but "+
			"got %v", epoch)}
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return &Error{"save", err}
	}

	// Checkpoint files are only ever complete, written by rename
	tmp, err := os.CreateTemp(s.dir, filename(epoch)+".tmp*")
	if err != nil {
		return &Error{"save", err}
	}
	if err := gob.NewEncoder(tmp).Encode(obj); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &Error{"save", fmt.Errorf("could not encode epoch %v: %w",
			epoch, err)}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &Error{"save", err}
	}

	if err := os.Rename(tmp.Name(), s.Path(epoch)); err != nil {
		os.Remove(tmp.Name())
		return &Error{"save", err}
	}
	return nil
}

// Load decodes the checkpoint of epoch into obj and returns the epoch
// loaded. If epoch is Latest, the checkpoint with the greatest epoch is
// loaded.
func (s *Store) Load(epoch int, obj Serializable) (int, error) {
	if epoch == Latest {
		latest, err := s.Latest()
		if err != nil {
			return 0, &Error{"load", err}
		}
		epoch = latest
	}

	f, err := os.Open(s.Path(epoch))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, &Error{"load", fmt.Errorf("epoch %v: %w", epoch,
			ErrNotFound)}
	} else if err != nil {
		return 0, &Error{"load", err}
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(obj); err != nil {
		return 0, &Error{"load", fmt.Errorf("could not decode epoch %v: %w",
			epoch, err)}
	}
	return epoch, nil
}

// Epochs returns the epochs of all checkpoints in the Store in
// increasing order
func (s *Store) Epochs() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var epochs []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if epoch, ok := epochOf(entry.Name()); ok {
			epochs = append(epochs, epoch)
		}
	}
	sort.Ints(epochs)
	return epochs, nil
}

// Latest returns the greatest epoch with a checkpoint in the Store
func (s *Store) Latest() (int, error) {
	epochs, err := s.Epochs()
	if err != nil {
		return 0, &Error{"latest", err}
	}
	if len(epochs) == 0 {
		return 0, &Error{"latest", fmt.Errorf("no checkpoints in %v: %w",
			s.dir, ErrNotFound)}
	}
	return epochs[len(epochs)-1], nil
}
