package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

var (
	_ ports.PageSplitter = (*PageSplitter)(nil)
	_ ports.PDFAnnotator = (*Annotator)(nil)
	_ ports.Locker       = (*Locker)(nil)
)

// PageSplitter produces Pages synthetic single-page files.
type PageSplitter struct {
	Pages int
	Err   error
}

func (s *PageSplitter) Split(ctx context.Context, src []byte) ([][]byte, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([][]byte, s.Pages)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("%%PDF-page-%d", i))
	}
	return out, nil
}

// Annotator appends the properties to the source bytes in sorted key order.
type Annotator struct{}

func (Annotator) Annotate(ctx context.Context, src []byte, props map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.Write(src)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%%%s=%s", k, props[k])
	}
	return []byte(b.String()), nil
}

// Locker is a process-local lock table.
type Locker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[name] {
		return false, nil
	}
	l.held[name] = true
	return true, nil
}

func (l *Locker) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}
