package contentstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Memory is an in-process store addressed by the BLAKE2b-256 digest of the
// compacted document, so equal documents share a reference.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]json.RawMessage)}
}

func (m *Memory) Put(_ context.Context, doc json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return "", fmt.Errorf("invalid document: %w", err)
	}
	sum := blake2b.Sum256(buf.Bytes())
	ref := "b2" + hex.EncodeToString(sum[:])

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[ref] = buf.Bytes()
	return ref, nil
}

func (m *Memory) Get(_ context.Context, ref string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), doc...), nil
}

func (m *Memory) Unpin(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[ref]; !ok {
		return ErrNotFound
	}
	delete(m.docs, ref)
	return nil
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

var _ Unpinner = (*Memory)(nil)
