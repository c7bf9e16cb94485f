package app

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/searchktools/fast-runtime/config"
	"github.com/searchktools/fast-runtime/core"
	"github.com/searchktools/fast-runtime/core/accel"
	"github.com/searchktools/fast-runtime/core/binding"
	"github.com/searchktools/fast-runtime/core/logging"
	"github.com/searchktools/fast-runtime/core/router"
)

const modulePath = "/lib/accelerator.so"

func testApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Binding.SearchPaths = []string{modulePath}
	resolver := binding.NewResolver(cfg.Binding,
		binding.WithLoader(binding.StaticLoader{modulePath: accel.Symbols()}))
	return NewWithResolver(cfg, logging.Nop(), resolver)
}

func get(t *testing.T, h stdhttp.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestDiagnosticsStatus(t *testing.T) {
	a := testApp(t)
	h := a.DiagnosticsHandler()

	rec := get(t, h, "GET", "/status")
	require.Equal(t, 200, rec.Code)
	var st binding.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.True(t, st.Loaded)
	require.True(t, st.Parser)
	require.Equal(t, modulePath, st.Path)

	rec = get(t, h, "GET", "/status.pb")
	require.Equal(t, "application/x-protobuf", rec.Header().Get("Content-Type"))
	var pb structpb.Struct
	require.NoError(t, proto.Unmarshal(rec.Body.Bytes(), &pb))
	require.True(t, pb.Fields["loaded"].GetBoolValue())
}

func TestDiagnosticsStatsAndMetrics(t *testing.T) {
	a := testApp(t)
	h := a.DiagnosticsHandler()
	a.Engine().GET("/x", func(ctx core.Context) { ctx.String(200, "x") })

	client, server := net.Pipe()
	go a.Engine().ServeConn(server)
	go client.Write([]byte("GET /x HTTP/1.1\r\nConnection: close\r\n\r\n"))
	resp, err := stdhttp.ReadResponse(bufio.NewReader(client), nil)
	require.NoError(t, err)
	resp.Body.Close()
	client.Close()

	rec := get(t, h, "GET", "/stats")
	var stats struct {
		Dispatch struct {
			RouterFinds uint64            `json:"router_finds"`
			Backends    map[string]string `json:"backends"`
		} `json:"dispatch"`
		Requests uint64 `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, uint64(1), stats.Requests)
	require.Equal(t, uint64(1), stats.Dispatch.RouterFinds)
	require.Equal(t, "accelerator", stats.Dispatch.Backends["router"])

	rec = get(t, h, "GET", "/metrics")
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "fastrt_router_finds_total 1")
	require.Contains(t, body, `fastrt_accelerated{capability="parser"} 1`)
	require.Contains(t, body, "go_goroutines")
}

func TestDiagnosticsRoutes(t *testing.T) {
	a := testApp(t)
	a.Engine().GET("/users/:id", func(ctx core.Context) {})
	a.Engine().POST("/users", func(ctx core.Context) {})

	rec := get(t, a.DiagnosticsHandler(), "GET", "/routes")
	require.Equal(t, 200, rec.Code)
	var routes []router.Route
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &routes))
	require.Equal(t, []router.Route{
		{Method: "POST", Pattern: "/users"},
		{Method: "GET", Pattern: "/users/:id"},
	}, routes)
}

func TestDiagnosticsReload(t *testing.T) {
	a := testApp(t)
	h := a.DiagnosticsHandler()

	require.Equal(t, stdhttp.StatusMethodNotAllowed, get(t, h, "GET", "/reload").Code)

	get(t, h, "GET", "/status")
	attempts, _ := a.resolver.Counters()
	require.Equal(t, uint64(1), attempts)

	rec := get(t, h, "POST", "/reload")
	require.Equal(t, 200, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `"loaded": true`))
}

func TestRunContext(t *testing.T) {
	a := testApp(t)
	a.cfg.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunContext(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunContext did not return")
	}
}
