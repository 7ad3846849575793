// Package mocks provides in-memory implementations of the ports for tests
// and local runs.
package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

var _ ports.ObjectStore = (*ObjectStore)(nil)

// ObjectStore keeps objects in memory keyed by bucket and name.
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	Deletes []string
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte)}
}

func key(bucket, object string) string { return bucket + "/" + object }

// Put seeds an object.
func (s *ObjectStore) Put(bucket, object string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key(bucket, object)] = append([]byte(nil), data...)
}

// Get returns an object and whether it exists.
func (s *ObjectStore) Get(bucket, object string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key(bucket, object)]
	return b, ok
}

// Names returns every object name in a bucket, sorted.
func (s *ObjectStore) Names(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.objects {
		if strings.HasPrefix(k, bucket+"/") {
			out = append(out, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	sort.Strings(out)
	return out
}

func (s *ObjectStore) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key(bucket, object)]
	if !ok {
		return nil, fmt.Errorf("gs://%s/%s: %w", bucket, object, ports.ErrObjectNotExist)
	}
	return append([]byte(nil), b...), nil
}

func (s *ObjectStore) Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	s.Put(bucket, object, data)
	return nil
}

func (s *ObjectStore) UploadIfAbsent(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(bucket, object)
	if _, ok := s.objects[k]; !ok {
		s.objects[k] = append([]byte(nil), data...)
	}
	return nil
}

func (s *ObjectStore) Copy(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error {
	b, err := s.Download(ctx, srcBucket, srcObject)
	if err != nil {
		return err
	}
	s.Put(dstBucket, dstObject, b)
	return nil
}

func (s *ObjectStore) Delete(ctx context.Context, bucket, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(bucket, object)
	if _, ok := s.objects[k]; !ok {
		return fmt.Errorf("gs://%s/%s: %w", bucket, object, ports.ErrObjectNotExist)
	}
	delete(s.objects, k)
	s.Deletes = append(s.Deletes, k)
	return nil
}

func (s *ObjectStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var out []string
	for _, name := range s.Names(bucket) {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out, nil
}
