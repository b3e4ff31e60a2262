package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a Store persisted as a JSON object in a single file, one file
// per profile. Every mutation rewrites the file. The directory is created
// with mode 0700 and the file written with mode 0600 since it holds the
// user's identity.
type File struct {
	path string

	mu   sync.RWMutex
	data map[string]string
}

// OpenFile loads the store at path. A missing file yields an empty store;
// the file is created on the first write.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("reading session store %s: %w", path, err)
	}
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f.data); err != nil {
		return nil, fmt.Errorf("parsing session store %s: %w", path, err)
	}
	if f.data == nil {
		f.data = make(map[string]string)
	}
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

func (f *File) Save(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.data[key]
	f.data[key] = value
	if err := f.flushLocked(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

func (f *File) Load(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.data[key]
	if !had {
		return nil
	}
	delete(f.data, key)
	if err := f.flushLocked(); err != nil {
		f.data[key] = prev
		return err
	}
	return nil
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.data = make(map[string]string)
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session store %s: %w", f.path, err)
	}
	return nil
}

// flushLocked writes the current map to a temp file and renames it over
// the store file. Caller must hold the write lock.
func (f *File) flushLocked() error {
	data, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session store: %w", err)
	}
	data = append(data, '\n')

	directory := filepath.Dir(f.path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("creating session store directory %s: %w", directory, err)
	}

	tmp, err := os.CreateTemp(directory, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp session store: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing session store: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod session store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing session store: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing session store %s: %w", f.path, err)
	}
	return nil
}
