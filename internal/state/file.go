package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/eleven-am/netform/internal/domain"
)

const fileFormatVersion = 1

type fileDocument struct {
	Version  int                              `json:"version"`
	Topology string                           `json:"topology"`
	Records  map[string]domain.ResourceRecord `json:"records"`
}

// FileStore keeps every record of a topology in one JSON document. Each Put
// rewrites the document through a temp file and rename.
type FileStore struct {
	mu       sync.Mutex
	path     string
	topology string
}

func NewFileStore(path, topology string) *FileStore {
	return &FileStore{path: path, topology: topology}
}

func (s *FileStore) load() (*fileDocument, error) {
	doc := &fileDocument{Version: fileFormatVersion, Topology: s.topology, Records: make(map[string]domain.ResourceRecord)}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if doc.Version != fileFormatVersion {
		return nil, fmt.Errorf("%s: unsupported state version %d", s.path, doc.Version)
	}
	if doc.Topology != "" && doc.Topology != s.topology {
		return nil, fmt.Errorf("%s belongs to topology %q, not %q", s.path, doc.Topology, s.topology)
	}
	if doc.Records == nil {
		doc.Records = make(map[string]domain.ResourceRecord)
	}
	return doc, nil
}

func (s *FileStore) save(doc *fileDocument) error {
	doc.Topology = s.topology
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) Get(_ context.Context, logicalName string) (domain.ResourceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return domain.ResourceRecord{}, domain.StoreError("get", logicalName, err)
	}
	rec, ok := doc.Records[logicalName]
	if !ok {
		return domain.ResourceRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *FileStore) Put(_ context.Context, record domain.ResourceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return domain.StoreError("put", record.LogicalName, err)
	}
	doc.Records[record.LogicalName] = record
	if err := s.save(doc); err != nil {
		return domain.StoreError("put", record.LogicalName, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, logicalName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return domain.StoreError("delete", logicalName, err)
	}
	if _, ok := doc.Records[logicalName]; !ok {
		return nil
	}
	delete(doc.Records, logicalName)
	if err := s.save(doc); err != nil {
		return domain.StoreError("delete", logicalName, err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) ([]domain.ResourceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, domain.StoreError("list", s.path, err)
	}
	return sortedRecords(doc.Records), nil
}
