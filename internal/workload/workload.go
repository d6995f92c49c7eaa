// Package workload drives buffers through host/device round trips on one
// goroutine per context and reports what moved.
package workload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/samcharles93/duplex/internal/backend"
	"github.com/samcharles93/duplex/internal/logger"
	"github.com/samcharles93/duplex/pkg/compute"
)

const (
	KindArray  = "array"
	KindLinear = "linear"
)

// MaxContexts bounds Spec.Contexts. Every context pins an OS thread.
const MaxContexts = 64

// Spec describes one workload.
type Spec struct {
	Name        string `json:"name,omitempty" yaml:"name"`
	Kind        string `json:"kind" yaml:"kind"`
	Backend     string `json:"backend" yaml:"backend"`
	Dims        []int  `json:"dims" yaml:"dims"`
	ElementSize int    `json:"element_size" yaml:"element_size"`
	Hint        string `json:"hint,omitempty" yaml:"hint"`
	Contexts    int    `json:"contexts" yaml:"contexts"`
	Iterations  int    `json:"iterations" yaml:"iterations"`

	// Rate caps round trips per second on each context. Zero is unlimited.
	Rate float64 `json:"rate,omitempty" yaml:"rate"`
}

// DefaultSpec is a 64x64 RGBA8 array on two contexts.
func DefaultSpec() Spec {
	return Spec{
		Kind:        KindArray,
		Backend:     backend.Auto,
		Dims:        []int{64, 64},
		ElementSize: 4,
		Contexts:    2,
		Iterations:  4,
	}
}

// Validate checks s and fills in defaults for empty fields.
func (s *Spec) Validate() error {
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
	if s.Kind == "" {
		s.Kind = KindArray
	}
	if s.Kind != KindArray && s.Kind != KindLinear {
		return fmt.Errorf("unknown buffer kind %q (expected array or linear)", s.Kind)
	}
	b, err := backend.Normalize(s.Backend)
	if err != nil {
		return err
	}
	s.Backend = b
	if len(s.Dims) == 0 {
		return errors.New("at least one dimension is required")
	}
	for i, d := range s.Dims {
		if d <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, d)
		}
	}
	if s.Kind == KindArray && len(s.Dims) > compute.MaxArrayRank {
		return fmt.Errorf("array buffers support at most %d dimensions", compute.MaxArrayRank)
	}
	if s.ElementSize <= 0 {
		return fmt.Errorf("element size must be > 0, got %d", s.ElementSize)
	}
	if s.Contexts <= 0 {
		s.Contexts = 1
	}
	if s.Contexts > MaxContexts {
		return fmt.Errorf("contexts must be <= %d, got %d", MaxContexts, s.Contexts)
	}
	if s.Iterations <= 0 {
		s.Iterations = 1
	}
	if s.Rate < 0 {
		return fmt.Errorf("rate must be >= 0, got %g", s.Rate)
	}
	return nil
}

// Buffer is what the workload needs from either buffer kind.
type Buffer interface {
	compute.Memory
	Init() error
	Clear() error
	Map(c compute.Context, m compute.Mapping) ([]byte, error)
	Unmap(c compute.Context) error
	ClearContext(c compute.Context) error
	Streams() []compute.StreamState
	SetLogger(l compute.Logger)
	SetName(name string)
	SetDimension(i, size int)
	SetElementSize(size int)
	SetAllocHint(h compute.AllocHint)
}

// ContextReport is what one context did.
type ContextReport struct {
	Context    int           `json:"context"`
	Backend    string        `json:"backend"`
	Iterations int           `json:"iterations"`
	Uploads    int           `json:"uploads"`
	Downloads  int           `json:"downloads"`
	BytesUp    int           `json:"bytes_up"`
	BytesDown  int           `json:"bytes_down"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Report summarises a finished workload.
type Report struct {
	ID       string                `json:"id"`
	Spec     Spec                  `json:"spec"`
	Buffer   string                `json:"buffer"`
	ByteSize int                   `json:"byte_size"`
	Contexts []ContextReport       `json:"contexts"`
	Streams  []compute.StreamState `json:"streams"`
	Started  time.Time             `json:"started"`
	Elapsed  time.Duration         `json:"elapsed"`
}

// Failed reports whether any context hit an error.
func (r *Report) Failed() bool {
	for _, c := range r.Contexts {
		if c.Error != "" {
			return true
		}
	}
	return false
}

// NewBuffer builds and initializes the buffer s describes.
func NewBuffer(s Spec, log logger.Logger) (Buffer, error) {
	var b Buffer
	switch s.Kind {
	case KindLinear:
		b = compute.NewLinear()
	default:
		b = compute.NewArray()
	}
	b.SetLogger(log)
	if s.Name != "" {
		b.SetName(s.Name)
	}
	for i, d := range s.Dims {
		b.SetDimension(i, d)
	}
	b.SetElementSize(s.ElementSize)
	b.SetAllocHint(compute.ParseAllocHint(s.Hint))
	if err := b.Init(); err != nil {
		return nil, err
	}
	return b, nil
}

// Run executes s. Every context gets its own goroutine, locked OS thread and
// provider; streams are snapshotted before the contexts are torn down.
func Run(ctx context.Context, s Spec, log logger.Logger) (*Report, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.FromContext(ctx)
	}
	id := uuid.NewString()
	if s.Name == "" {
		s.Name = "workload-" + id[:8]
	}

	buf, err := NewBuffer(s, log)
	if err != nil {
		return nil, err
	}
	defer buf.Clear()

	report := &Report{
		ID:       id,
		Spec:     s,
		Buffer:   buf.Name(),
		ByteSize: buf.ByteSize(),
		Contexts: make([]ContextReport, s.Contexts),
		Started:  time.Now(),
	}
	log.Info("workload started", "id", id, "buffer", buf.Name(), "kind", s.Kind,
		"backend", s.Backend, "contexts", s.Contexts, "bytes", buf.ByteSize())

	var (
		worked  sync.WaitGroup
		release = make(chan struct{})
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := range s.Contexts {
		worked.Add(1)
		g.Go(func() error {
			return runContext(gctx, s, buf, i, &report.Contexts[i], &worked, release)
		})
	}
	worked.Wait()
	report.Streams = buf.Streams()
	close(release)
	err = g.Wait()
	report.Elapsed = time.Since(report.Started)

	if err != nil {
		log.Error("workload failed", "id", id, "error", err)
		return report, err
	}
	log.Info("workload finished", "id", id, "elapsed", report.Elapsed)
	return report, nil
}

func runContext(ctx context.Context, s Spec, buf Buffer, id int, out *ContextReport,
	worked *sync.WaitGroup, release <-chan struct{}) error {
	out.Context = id

	p, err := backend.New(s.Backend, id)
	if err != nil {
		out.Error = err.Error()
		worked.Done()
		return fmt.Errorf("context %d: %w", id, err)
	}
	out.Backend = p.Name()
	p.Assign()
	c := &counting{Provider: p}

	start := time.Now()
	err = roundTrips(ctx, buf, c, s.Iterations, pacer(s.Rate), out)
	out.Duration = time.Since(start)
	out.Uploads, out.Downloads = c.uploads, c.downloads
	out.BytesUp, out.BytesDown = c.bytesUp, c.bytesDown
	if err != nil {
		out.Error = err.Error()
		err = fmt.Errorf("context %d: %w", id, err)
	}
	worked.Done()

	<-release
	if cerr := buf.ClearContext(c); cerr != nil && err == nil {
		err = cerr
	}
	p.Release()
	if cerr := p.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// pacer returns a limiter for r round trips per second, or nil when r is 0.
func pacer(r float64) *rate.Limiter {
	if r <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(r), 1)
}

// roundTrips writes a pattern on the host, hands it to the device with
// write intent, and reads it back.
func roundTrips(ctx context.Context, buf Buffer, c compute.Context, iterations int,
	lim *rate.Limiter, out *ContextReport) error {
	for i := range iterations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}
		pattern := byte(c.ID()*31 + i + 1)

		host, err := buf.Map(c, compute.MapHostTarget)
		if err != nil {
			return err
		}
		for j := range host {
			host[j] = pattern
		}
		if _, err := buf.Map(c, compute.MapDeviceTarget); err != nil {
			return err
		}
		host, err = buf.Map(c, compute.MapHostSource)
		if err != nil {
			return err
		}
		for j, v := range host {
			if v != pattern {
				return fmt.Errorf("iteration %d: byte %d is %#x, want %#x", i, j, v, pattern)
			}
		}
		if err := buf.Unmap(c); err != nil {
			return err
		}
		out.Iterations++
	}
	return nil
}

// counting tallies the transfers a provider performs.
type counting struct {
	backend.Provider
	uploads, downloads int
	bytesUp, bytesDown int
}

func (c *counting) Memcpy(t compute.Transfer) error {
	if err := c.Provider.Memcpy(t); err != nil {
		return err
	}
	switch t.Kind {
	case compute.HostToDevice:
		c.uploads++
		c.bytesUp += t.Bytes()
	case compute.DeviceToHost:
		c.downloads++
		c.bytesDown += t.Bytes()
	}
	return nil
}
