package binding

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/searchktools/fast-runtime/core/logging"
	"github.com/searchktools/fast-runtime/core/optimize"
)

type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
	next  Loader
}

func newCountingLoader(next Loader) *countingLoader {
	return &countingLoader{calls: make(map[string]int), next: next}
}

func (l *countingLoader) Load(path string) (Module, error) {
	l.mu.Lock()
	l.calls[path]++
	l.mu.Unlock()
	return l.next.Load(path)
}

type panicLoader struct{}

func (panicLoader) Load(string) (Module, error) { panic("corrupt module") }

func accelSymbols() Symbols {
	return Symbols{
		"NewParser":    func() {},
		"NewRouter":    func() {},
		"NewURLParser": func() {},
	}
}

func TestResolveFirstSuccessWins(t *testing.T) {
	loader := newCountingLoader(StaticLoader{"/b.so": accelSymbols(), "/c.so": Symbols{}})
	r := NewResolver(Config{Enabled: true}, WithLoader(loader))

	mod, ok := r.Resolve([]string{"/a.so", "/b.so", "/c.so"})
	require.True(t, ok)
	require.NotNil(t, mod)
	require.Equal(t, map[string]int{"/a.so": 1, "/b.so": 1}, loader.calls)

	// cached: neither the failure nor the success is retried
	_, ok = r.Resolve([]string{"/a.so", "/b.so"})
	require.True(t, ok)
	require.Equal(t, map[string]int{"/a.so": 1, "/b.so": 1}, loader.calls)

	attempts, successes := r.Counters()
	require.Equal(t, uint64(2), attempts)
	require.Equal(t, uint64(1), successes)
}

func TestResolveNoCandidateLoads(t *testing.T) {
	r := NewResolver(Config{Enabled: true}, WithLoader(StaticLoader{}))

	mod, ok := r.Resolve([]string{"/missing.so"})
	require.False(t, ok)
	require.Nil(t, mod)
}

func TestResolverAvailable(t *testing.T) {
	r := NewResolver(Config{Enabled: true, SearchPaths: []string{"/missing.so", "/accel.so"}},
		WithLoader(StaticLoader{"/accel.so": accelSymbols()}))

	require.True(t, r.Available(Parser))
	require.True(t, r.Available(Router))
	require.True(t, r.Available(URL))
	require.False(t, r.Available(JSON))
	require.False(t, r.Available(Capability(200)))

	v, ok := r.Symbol(Parser)
	require.True(t, ok)
	require.NotNil(t, v)

	s := r.Status()
	require.True(t, s.Loaded)
	require.Equal(t, "/accel.so", s.Path)
	require.Empty(t, s.Error)
	require.True(t, s.Parser)
	require.False(t, s.Schema)
}

func TestResolverDisabled(t *testing.T) {
	loader := newCountingLoader(StaticLoader{"/accel.so": accelSymbols()})
	r := NewResolver(Config{Enabled: false, SearchPaths: []string{"/accel.so"}}, WithLoader(loader))

	require.False(t, r.Available(Parser))
	_, ok := r.Resolve([]string{"/accel.so"})
	require.False(t, ok)
	require.Empty(t, loader.calls)

	s := r.Status()
	require.False(t, s.Enabled)
	require.False(t, s.Loaded)
	require.Equal(t, "accelerator disabled", s.Error)
}

func TestResolverAbsorbsLoaderPanics(t *testing.T) {
	r := NewResolver(Config{Enabled: true, SearchPaths: []string{"/broken.so"}}, WithLoader(panicLoader{}))

	require.NotPanics(t, func() {
		require.False(t, r.Available(Parser))
	})
	require.Contains(t, r.Status().Error, "corrupt module")
}

func TestResolverNotFound(t *testing.T) {
	r := NewResolver(Config{Enabled: true}, WithLoader(StaticLoader{}))
	require.Equal(t, ErrNotFound.Error(), r.Status().Error)
}

func TestResolverClearCache(t *testing.T) {
	loader := newCountingLoader(StaticLoader{"/accel.so": accelSymbols()})
	r := NewResolver(Config{Enabled: true, SearchPaths: []string{"/accel.so"}}, WithLoader(loader))

	require.True(t, r.Available(Parser))
	require.True(t, r.Available(Router))
	require.Equal(t, 1, loader.calls["/accel.so"])

	r.ClearCache()
	attempts, _ := r.Counters()
	require.Zero(t, attempts)

	require.True(t, r.Available(Parser))
	require.Equal(t, 2, loader.calls["/accel.so"])
}

func TestResolverConcurrentQueries(t *testing.T) {
	loader := newCountingLoader(StaticLoader{"/accel.so": accelSymbols()})
	r := NewResolver(Config{Enabled: true, SearchPaths: []string{"/accel.so"}}, WithLoader(loader))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Available(Capability(i % int(numCapabilities)))
			r.Status()
		}()
	}
	wg.Wait()
	require.Equal(t, 1, loader.calls["/accel.so"])
}

func TestResolverVerboseTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "debug")
	r := NewResolver(Config{Enabled: true, Verbose: true, SearchPaths: []string{"/missing.so"}},
		WithLoader(StaticLoader{}), WithLogger(logger))
	r.Available(Parser)

	out := buf.String()
	require.Contains(t, out, "accelerator load attempt")
	require.Contains(t, out, "path=/missing.so")
	require.Contains(t, out, "duration=")

	buf.Reset()
	quiet := NewResolver(Config{Enabled: true, SearchPaths: []string{"/missing.so"}},
		WithLoader(StaticLoader{}), WithLogger(logger))
	quiet.Available(Parser)
	require.NotContains(t, buf.String(), "accelerator load attempt")
}

func TestStatusEncodings(t *testing.T) {
	defer func(f func() optimize.Features) { cpuFeatures = f }(cpuFeatures)
	cpuFeatures = func() optimize.Features { return optimize.Features{Arch: "amd64", AVX2: true} }

	r := NewResolver(Config{Enabled: true, SearchPaths: []string{"/accel.so"}},
		WithLoader(StaticLoader{"/accel.so": accelSymbols()}))
	s := r.Status()

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, true, decoded["parser"])
	require.Equal(t, "amd64", decoded["cpu"].(map[string]any)["arch"])

	pb, err := s.Proto()
	require.NoError(t, err)
	require.True(t, pb.Fields["loaded"].GetBoolValue())
	require.Equal(t, float64(1), pb.Fields["attempts"].GetNumberValue())
	caps := pb.Fields["capabilities"].GetStructValue()
	require.True(t, caps.Fields["router"].GetBoolValue())
	require.False(t, caps.Fields["crypto"].GetBoolValue())
	require.True(t, pb.Fields["cpu"].GetStructValue().Fields["avx2"].GetBoolValue())
}

func TestDefaultSearchPaths(t *testing.T) {
	t.Setenv(EnvAccelerator, "/opt/custom.so")
	paths := DefaultSearchPaths()

	require.Equal(t, "/opt/custom.so", paths[0])
	require.Equal(t, ModuleName, paths[1])
	require.True(t, strings.HasSuffix(paths[len(paths)-1], filepath.Join("fast-runtime", ModuleName)))
}

func TestPluginLoaderMissingFile(t *testing.T) {
	_, err := PluginLoader{}.Load(filepath.Join(t.TempDir(), "nope.so"))
	require.Error(t, err)
}

func TestSymbolsLookup(t *testing.T) {
	_, err := Symbols{}.Lookup("NewParser")
	require.True(t, errors.Is(err, ErrSymbolNotFound))
}

func TestCapabilityNames(t *testing.T) {
	require.Len(t, Capabilities(), 8)
	require.Equal(t, "websocket", WebSocket.String())
	require.Equal(t, "NewURLParser", URL.Symbol())
	require.Equal(t, "unknown", Capability(99).String())
}
