// Package secret хранит API-токен провайдера. Механизм шифрования
// остаётся за бэкендом хранения (файл с правами 0600 или Vault).
package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoSecret токен не сохранён
var ErrNoSecret = errors.New("secret not found")

// Store хранилище одного секрета
type Store interface {
	// Has сообщает, сохранён ли секрет
	Has(ctx context.Context) bool
	// Store сохраняет секрет, заменяя прежний
	Store(ctx context.Context, value string) error
	// Retrieve возвращает секрет или ErrNoSecret
	Retrieve(ctx context.Context) (string, error)
	// Delete удаляет секрет; отсутствие секрета не ошибка
	Delete(ctx context.Context) error
}

// MemoryStore хранит секрет в памяти процесса
type MemoryStore struct {
	mu    sync.RWMutex
	value string
}

// NewMemoryStore создаёт новый экземпляр MemoryStore
func NewMemoryStore(initial string) *MemoryStore {
	return &MemoryStore{value: initial}
}

// Has сообщает, сохранён ли секрет
func (m *MemoryStore) Has(context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value != ""
}

// Store сохраняет секрет
func (m *MemoryStore) Store(_ context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	return nil
}

// Retrieve возвращает секрет
func (m *MemoryStore) Retrieve(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.value == "" {
		return "", ErrNoSecret
	}
	return m.value, nil
}

// Delete удаляет секрет
func (m *MemoryStore) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = ""
	return nil
}

// FileStore хранит секрет в файле с правами 0600
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore создаёт новый экземпляр FileStore и каталог для файла
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

// Has сообщает, сохранён ли секрет
func (f *FileStore) Has(ctx context.Context) bool {
	_, err := f.Retrieve(ctx)
	return err == nil
}

// Store атомарно записывает секрет через временный файл
func (f *FileStore) Store(_ context.Context, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".secret-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// Retrieve читает секрет из файла
func (f *FileStore) Retrieve(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoSecret
	}
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", ErrNoSecret
	}
	return value, nil
}

// Delete удаляет файл секрета
func (f *FileStore) Delete(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
