package workload

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/samcharles93/duplex/internal/logger"
	"github.com/samcharles93/duplex/pkg/compute"
)

func TestRunArrayOnSim(t *testing.T) {
	s := Spec{Kind: KindArray, Backend: "sim", Dims: []int{8, 4}, ElementSize: 4, Contexts: 3, Iterations: 5}
	log := logger.NewCapture()
	r, err := Run(context.Background(), s, log)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Failed() {
		t.Fatalf("report has failures: %+v", r.Contexts)
	}
	if r.ByteSize != 128 || len(r.Contexts) != 3 || len(r.Streams) != 3 {
		t.Fatalf("report = %+v", r)
	}
	for _, c := range r.Contexts {
		if c.Backend != "sim" || c.Iterations != 5 {
			t.Fatalf("context %d: %+v", c.Context, c)
		}
		if c.Uploads != 5 || c.Downloads != 5 || c.BytesUp != 5*128 || c.BytesDown != 5*128 {
			t.Fatalf("context %d moved %d/%d transfers, %d/%d bytes", c.Context, c.Uploads, c.Downloads, c.BytesUp, c.BytesDown)
		}
	}
	for _, st := range r.Streams {
		if st.Mapping != compute.Unmapped.String() || !st.HostAllocated || !st.DeviceAllocated {
			t.Fatalf("stream = %+v", st)
		}
	}
	if !strings.HasPrefix(r.Buffer, "workload-") {
		t.Fatalf("buffer name = %q", r.Buffer)
	}
	if !log.Contains(slog.LevelInfo, "workload finished") {
		t.Fatalf("missing completion log")
	}
}

func TestRunLinearHighRank(t *testing.T) {
	s := Spec{Name: "deep", Kind: "LINEAR", Backend: "sim", Dims: []int{2, 2, 2, 2}, ElementSize: 1, Hint: "dynamic"}
	r, err := Run(context.Background(), s, logger.Discard())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Buffer != "deep" || r.Spec.Contexts != 1 || r.Spec.Iterations != 1 {
		t.Fatalf("report = %+v", r)
	}
	if r.Streams[0].AllocHint != "dynamic" || r.Streams[0].Kind != "linear" {
		t.Fatalf("stream = %+v", r.Streams[0])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want string
	}{
		{"bad kind", Spec{Kind: "ring", Dims: []int{1}, ElementSize: 1}, "unknown buffer kind"},
		{"bad backend", Spec{Backend: "tpu", Dims: []int{1}, ElementSize: 1}, "unknown backend"},
		{"no dims", Spec{ElementSize: 1}, "dimension"},
		{"zero dim", Spec{Dims: []int{4, 0}, ElementSize: 1}, "dimension 1"},
		{"array rank", Spec{Dims: []int{1, 1, 1, 1}, ElementSize: 1}, "at most 3"},
		{"element size", Spec{Dims: []int{1}}, "element size"},
		{"negative rate", Spec{Dims: []int{1}, ElementSize: 1, Rate: -1}, "rate must be"},
		{"too many contexts", Spec{Dims: []int{1}, ElementSize: 1, Contexts: MaxContexts + 1}, "contexts must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want %q", err, tt.want)
			}
		})
	}

	s := DefaultSpec()
	if err := s.Validate(); err != nil {
		t.Fatalf("default spec invalid: %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := Spec{Backend: "sim", Dims: []int{4}, ElementSize: 1, Contexts: 2, Iterations: 3}
	r, err := Run(ctx, s, logger.Discard())
	if err == nil {
		t.Fatalf("cancelled run should fail")
	}
	if r == nil || !r.Failed() {
		t.Fatalf("report should record the failure: %+v", r)
	}
}

func TestRunPaced(t *testing.T) {
	s := Spec{Backend: "sim", Dims: []int{4}, ElementSize: 1, Contexts: 2, Iterations: 3, Rate: 1000}
	r, err := Run(context.Background(), s, logger.Discard())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, c := range r.Contexts {
		if c.Iterations != 3 {
			t.Fatalf("context %d ran %d iterations, want 3", c.Context, c.Iterations)
		}
	}
}

func TestRunPacingHonoursDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// The first round trip uses the burst; the second would wait ~17 minutes.
	s := Spec{Backend: "sim", Dims: []int{4}, ElementSize: 1, Contexts: 1, Iterations: 2, Rate: 0.001}
	start := time.Now()
	r, err := Run(ctx, s, logger.Discard())
	if err == nil {
		t.Fatalf("paced run past the deadline should fail")
	}
	if errors.Is(err, context.DeadlineExceeded) || time.Since(start) > 4*time.Second {
		t.Fatalf("limiter should refuse up front, got %v after %s", err, time.Since(start))
	}
	if r.Contexts[0].Iterations != 1 {
		t.Fatalf("iterations = %d, want 1", r.Contexts[0].Iterations)
	}
}
