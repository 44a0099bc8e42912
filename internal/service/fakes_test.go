package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/assacalos/megvie/internal/form"
	"github.com/assacalos/megvie/internal/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// memStore is an in-memory storage.Store recording deletions.
type memStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	types      map[string]string
	deleted    []string
	failDelete bool
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStore) Put(_ context.Context, key string, r io.Reader, opts *storage.PutOptions) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = buf.Bytes()
	if opts != nil {
		s.types[key] = opts.ContentType
	}
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	if s.failDelete {
		return errors.New("bucket unavailable")
	}
	delete(s.objects, key)
	return nil
}

func (s *memStore) URL(key string) string { return "http://cdn.test/" + key }

// recordingGateway remembers every send and fails for numbers listed in fail.
type recordingGateway struct {
	sent []string
	fail map[string]bool
}

func (g *recordingGateway) Send(_ context.Context, to, _ string) bool {
	g.sent = append(g.sent, to)
	return !g.fail[to]
}

func (g *recordingGateway) IsConfigured() bool { return true }

func values(kv ...string) form.Values {
	v := form.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		s := kv[i+1]
		v[kv[i]] = &s
	}
	return v
}
