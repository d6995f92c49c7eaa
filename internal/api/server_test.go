package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/duplex/internal/logger"
	"github.com/samcharles93/duplex/internal/workload"
	"github.com/samcharles93/duplex/pkg/compute"
)

func testDefaults() workload.Spec {
	return workload.Spec{
		Kind:        workload.KindArray,
		Backend:     "sim",
		Dims:        []int{4, 4},
		ElementSize: 4,
		Contexts:    2,
		Iterations:  2,
	}
}

func newTestEcho(t *testing.T) (*echo.Echo, *Server) {
	t.Helper()
	server := NewServer(NewCatalog(), testDefaults(), logger.Discard())
	e := echo.New()
	server.Register(e)
	return e, server
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestWorkloadLifecycle(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/v1/workloads", `{"name":"tiles","contexts":3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var report workload.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.ID == "" || report.Buffer != "tiles" || len(report.Contexts) != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.ByteSize != 64 {
		t.Fatalf("byte size: got %d want 64", report.ByteSize)
	}

	listRec := doJSON(t, e, http.MethodGet, "/v1/buffers", "")
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status: got %d", listRec.Code)
	}
	var list struct {
		Data []BufferSummary `json:"data"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].Name != "tiles" || list.Data[0].Streams != 3 {
		t.Fatalf("unexpected list: %+v", list.Data)
	}

	streamsRec := doJSON(t, e, http.MethodGet, "/v1/buffers/tiles/streams?context=1", "")
	if streamsRec.Code != http.StatusOK {
		t.Fatalf("streams status: got %d body=%s", streamsRec.Code, streamsRec.Body.String())
	}
	var streams struct {
		Data []compute.StreamState `json:"data"`
	}
	if err := json.Unmarshal(streamsRec.Body.Bytes(), &streams); err != nil {
		t.Fatalf("decode streams: %v", err)
	}
	if len(streams.Data) != 1 || streams.Data[0].Context != 1 || !streams.Data[0].DeviceAllocated {
		t.Fatalf("unexpected streams: %+v", streams.Data)
	}

	if rec := doJSON(t, e, http.MethodPost, "/v1/workloads", `{"name":"tiles"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate name status: got %d", rec.Code)
	}

	if rec := doJSON(t, e, http.MethodDelete, "/v1/buffers/tiles", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status: got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodGet, "/v1/buffers/tiles", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", rec.Code)
	}
}

func TestCreateWorkloadRejectsBadSpecs(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"dims":`},
		{"unknown field", `{"colour":"red"}`},
		{"bad kind", `{"kind":"ring"}`},
		{"rank", `{"dims":[1,1,1,1]}`},
		{"element size", `{"element_size":0}`},
		{"too many contexts", `{"contexts":1000}`},
		{"negative rate", `{"rate":-2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, e, http.MethodPost, "/v1/workloads", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), "invalid_request_error") {
				t.Fatalf("missing error type: %s", rec.Body.String())
			}
		})
	}
}

func TestCreateWorkloadEmptyBodyUsesDefaults(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/v1/workloads", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestWorkloadFailureIsStillRecorded(t *testing.T) {
	t.Parallel()

	e, server := newTestEcho(t)
	server.run = func(ctx context.Context, s workload.Spec, log logger.Logger) (*workload.Report, error) {
		return &workload.Report{
			ID:       "w1",
			Spec:     s,
			Buffer:   "broken",
			Contexts: []workload.ContextReport{{Context: 0, Error: "boom"}},
		}, errors.New("context 0: boom")
	}
	rec := doJSON(t, e, http.MethodPost, "/v1/workloads", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	list := server.catalog.List()
	if len(list) != 1 || !list[0].Failed {
		t.Fatalf("unexpected list: %+v", list)
	}

	server.run = func(context.Context, workload.Spec, logger.Logger) (*workload.Report, error) {
		return nil, errors.New("no backend")
	}
	if rec := doJSON(t, e, http.MethodPost, "/v1/workloads", `{}`); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestStreamsErrors(t *testing.T) {
	t.Parallel()

	e, server := newTestEcho(t)
	server.catalog.Add(&workload.Report{Buffer: "b", Streams: []compute.StreamState{{Context: 0}}})

	if rec := doJSON(t, e, http.MethodGet, "/v1/buffers/missing/streams", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing buffer: got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodGet, "/v1/buffers/b/streams?context=4", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing context: got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodGet, "/v1/buffers/b/streams?context=x", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad context: got %d", rec.Code)
	}
}

func TestBackends(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	rec := doJSON(t, e, http.MethodGet, "/v1/backends", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "sim") {
		t.Fatalf("backends: %d %s", rec.Code, rec.Body.String())
	}
}

func TestInvalidRequestUnwraps(t *testing.T) {
	err := newInvalidRequest("nope")
	if !errors.Is(err, ErrInvalidRequest) || err.Error() != "nope" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConcurrentCreateSameName(t *testing.T) {
	t.Parallel()

	e, server := newTestEcho(t)
	started := make(chan struct{})
	release := make(chan struct{})
	server.run = func(ctx context.Context, s workload.Spec, log logger.Logger) (*workload.Report, error) {
		close(started)
		<-release
		return &workload.Report{ID: "w1", Spec: s, Buffer: s.Name}, nil
	}

	first := make(chan int, 1)
	go func() {
		first <- doJSON(t, e, http.MethodPost, "/v1/workloads", `{"name":"shared"}`).Code
	}()
	<-started

	rec := doJSON(t, e, http.MethodPost, "/v1/workloads", `{"name":"shared"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second create while the first runs: got %d", rec.Code)
	}
	close(release)
	if code := <-first; code != http.StatusCreated {
		t.Fatalf("first create: got %d", code)
	}
	if _, ok := server.catalog.Get("shared"); !ok {
		t.Fatalf("first report was not stored")
	}
}

func TestCatalogReserve(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Reserve("b") == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("%d reservations succeeded, want 1", won)
	}
	if len(c.List()) != 0 {
		t.Fatalf("a reservation must not be listed")
	}

	c.Release("b")
	if err := c.Reserve("b"); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	c.Add(&workload.Report{Buffer: "b"})
	c.Release("b")
	if err := c.Reserve("b"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("reserve of a stored buffer = %v, want ErrInvalidRequest", err)
	}
}
