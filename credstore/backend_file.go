package credstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const credentialsFile = "credentials.json"

var _ Backend = (*FileBackend)(nil)

// FileBackend is the durable compartment: a small JSON document under the
// data folder. Writes go through a temp file and rename so a crash never
// leaves a half-written credential file behind.
type FileBackend struct {
	path string
	lock sync.Mutex
}

func NewFileBackend(folder string) (*FileBackend, error) {
	if folder == "" {
		return nil, errors.New("[credstore.NewFileBackend] folder is required")
	}
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[credstore.NewFileBackend] create data folder")
	}
	return &FileBackend{path: filepath.Join(folder, credentialsFile)}, nil
}

func (b *FileBackend) Get(key string) (string, bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	values, err := b.load()
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

func (b *FileBackend) Set(key, value string) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	values, err := b.load()
	if err != nil {
		return err
	}
	values[key] = value
	return b.save(values)
}

func (b *FileBackend) Delete(key string) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	values, err := b.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return b.save(values)
}

func (b *FileBackend) load() (map[string]string, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[credstore.FileBackend] read credentials file")
	}

	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		// A corrupt file is treated as empty rather than wedging every read.
		return make(map[string]string), nil
	}
	return values, nil
}

func (b *FileBackend) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "[credstore.FileBackend] encode credentials")
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "[credstore.FileBackend] write credentials file")
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return errors.Wrap(err, "[credstore.FileBackend] replace credentials file")
	}
	return nil
}
