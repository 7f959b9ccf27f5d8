package labelstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"ortholabel/pkg/fsutil"
)

// FileBackend keeps one JSON document per image in a directory. Writers to the
// same document file are serialized by a per-file mutex; different images
// proceed in parallel. It is safe for use within a single process only.
type FileBackend struct {
	dir string

	mu    sync.Mutex
	locks map[string]*fileLock
}

// fileLock is held while a document file is read or replaced. refs counts
// holders and waiters; the entry is dropped when it reaches zero.
type fileLock struct {
	mu   sync.Mutex
	refs int
}

// NewFileBackend creates a backend storing documents under dir.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create labels directory: %w", err)
	}
	return &FileBackend{dir: dir, locks: make(map[string]*fileLock)}, nil
}

// Path returns the document file for an image.
func (b *FileBackend) Path(imageID string) string {
	return filepath.Join(b.dir, fsutil.SanitizeFilename(imageID)+"_labels.json")
}

// lock acquires the mutex of the document file. Ids that sanitize to the same
// file name share it.
func (b *FileBackend) lock(path string) func() {
	b.mu.Lock()
	l, ok := b.locks[path]
	if !ok {
		l = &fileLock{}
		b.locks[path] = l
	}
	l.refs++
	b.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		b.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(b.locks, path)
		}
		b.mu.Unlock()
	}
}

// Load reads the document for imageID. A missing or unreadable document is
// returned as empty.
func (b *FileBackend) Load(ctx context.Context, imageID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := b.Path(imageID)
	defer b.lock(path)()
	return b.read(path)
}

// Update runs fn on the current document and atomically replaces the file
// when fn succeeds.
func (b *FileBackend) Update(ctx context.Context, imageID string, fn func(Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := b.Path(imageID)
	defer b.lock(path)()

	doc, err := b.read(path)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return b.write(path, doc)
}

// Close is a no-op.
func (b *FileBackend) Close() error {
	return nil
}

func (b *FileBackend) read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read label document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		log.Printf("labelstore: corrupt document %s, starting empty: %v", path, err)
		return Document{}, nil
	}
	return doc, nil
}

func (b *FileBackend) write(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize label document: %w", err)
	}

	return fsutil.WriteFileAtomic(path, data)
}
