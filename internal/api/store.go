package api

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samcharles93/duplex/internal/workload"
	"github.com/samcharles93/duplex/pkg/compute"
)

// BufferSummary is one row of the buffer listing.
type BufferSummary struct {
	Name      string    `json:"name"`
	Workload  string    `json:"workload"`
	Kind      string    `json:"kind"`
	Backend   string    `json:"backend"`
	Dims      []int     `json:"dims"`
	ByteSize  int       `json:"byte_size"`
	Streams   int       `json:"streams"`
	Failed    bool      `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

// Catalog keeps the reports of finished workloads, keyed by buffer name.
type Catalog struct {
	mu       sync.Mutex
	reports  map[string]*workload.Report
	reserved map[string]struct{}
}

func NewCatalog() *Catalog {
	return &Catalog{
		reports:  make(map[string]*workload.Report),
		reserved: make(map[string]struct{}),
	}
}

// Reserve claims name for a workload that is about to run. It fails if a
// buffer of that name exists or another request holds the claim.
func (s *Catalog) Reserve(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, stored := s.reports[name]
	_, held := s.reserved[name]
	if stored || held {
		return newInvalidRequest(fmt.Sprintf("buffer %q already exists", name))
	}
	s.reserved[name] = struct{}{}
	return nil
}

// Release drops a claim taken with Reserve. Stored reports are untouched.
func (s *Catalog) Release(name string) {
	s.mu.Lock()
	delete(s.reserved, name)
	s.mu.Unlock()
}

// Add stores r, replacing any report for the same buffer, and settles any
// claim on its name.
func (s *Catalog) Add(r *workload.Report) {
	s.mu.Lock()
	s.reports[r.Buffer] = r
	delete(s.reserved, r.Buffer)
	s.mu.Unlock()
}

func (s *Catalog) Get(name string) (*workload.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[name]
	return r, ok
}

func (s *Catalog) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[name]; !ok {
		return false
	}
	delete(s.reports, name)
	return true
}

// List returns summaries ordered by name.
func (s *Catalog) List() []BufferSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BufferSummary, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, summarize(r))
	}
	slices.SortFunc(out, func(a, b BufferSummary) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Streams returns the stream snapshot of a buffer, optionally only for one
// context.
func (s *Catalog) Streams(name string, context int) ([]compute.StreamState, error) {
	r, ok := s.Get(name)
	if !ok {
		return nil, fmt.Errorf("buffer %q: %w", name, ErrNotFound)
	}
	if context < 0 {
		return r.Streams, nil
	}
	for _, st := range r.Streams {
		if st.Context == context {
			return []compute.StreamState{st}, nil
		}
	}
	return nil, fmt.Errorf("buffer %q has no stream for context %d: %w", name, context, ErrNotFound)
}

func summarize(r *workload.Report) BufferSummary {
	return BufferSummary{
		Name:      r.Buffer,
		Workload:  r.ID,
		Kind:      r.Spec.Kind,
		Backend:   r.Spec.Backend,
		Dims:      r.Spec.Dims,
		ByteSize:  r.ByteSize,
		Streams:   len(r.Streams),
		Failed:    r.Failed(),
		CreatedAt: r.Started,
	}
}
