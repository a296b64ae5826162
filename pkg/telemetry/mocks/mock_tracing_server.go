// Package mocks holds an OTLP trace collector for tests that export spans.
package mocks

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	otlpcollector "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
)

type MockTracingServer struct {
	otlpcollector.UnimplementedTraceServiceServer

	addr string

	serviceMu   sync.Mutex
	exportCount int
	spanNames   []string
}

var _ otlpcollector.TraceServiceServer = (*MockTracingServer)(nil)

func (s *MockTracingServer) Export(_ context.Context, req *otlpcollector.ExportTraceServiceRequest) (*otlpcollector.ExportTraceServiceResponse, error) {
	s.serviceMu.Lock()
	defer s.serviceMu.Unlock()
	s.exportCount++
	for _, rs := range req.GetResourceSpans() {
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				s.spanNames = append(s.spanNames, span.GetName())
			}
		}
	}
	return &otlpcollector.ExportTraceServiceResponse{}, nil
}

// NewMockTracingServer serves the OTLP trace service on a free local port until the test ends.
func NewMockTracingServer(t testing.TB) *MockTracingServer {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	mockServer := &MockTracingServer{addr: lis.Addr().String()}
	server := grpc.NewServer()
	otlpcollector.RegisterTraceServiceServer(server, mockServer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Serve(lis)
	}()
	t.Cleanup(func() {
		server.Stop()
		<-done
	})

	return mockServer
}

// Addr is the host:port the server listens on.
func (s *MockTracingServer) Addr() string {
	return s.addr
}

func (s *MockTracingServer) GetExportCount() int {
	s.serviceMu.Lock()
	defer s.serviceMu.Unlock()
	return s.exportCount
}

// SpanNames returns the names of all exported spans in the order they arrived.
func (s *MockTracingServer) SpanNames() []string {
	s.serviceMu.Lock()
	defer s.serviceMu.Unlock()
	return append([]string(nil), s.spanNames...)
}
