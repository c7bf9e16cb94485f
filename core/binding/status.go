package binding

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/searchktools/fast-runtime/core/optimize"
)

// cpuFeatures is replaced in tests.
var cpuFeatures = optimize.Detect

// Status is a read-only snapshot of the binding state.
type Status struct {
	Enabled bool   `json:"enabled"`
	Loaded  bool   `json:"loaded"`
	Path    string `json:"path,omitempty"`

	Parser      bool `json:"parser"`
	Router      bool `json:"router"`
	JSON        bool `json:"json"`
	URL         bool `json:"url"`
	Crypto      bool `json:"crypto"`
	Compression bool `json:"compression"`
	WebSocket   bool `json:"websocket"`
	Schema      bool `json:"schema"`

	Error     string `json:"error,omitempty"`
	Attempts  uint64 `json:"attempts"`
	Successes uint64 `json:"successes"`

	CPU optimize.Features `json:"cpu"`
}

func (s *Status) set(c Capability, ok bool) {
	switch c {
	case Parser:
		s.Parser = ok
	case Router:
		s.Router = ok
	case JSON:
		s.JSON = ok
	case URL:
		s.URL = ok
	case Crypto:
		s.Crypto = ok
	case Compression:
		s.Compression = ok
	case WebSocket:
		s.WebSocket = ok
	case Schema:
		s.Schema = ok
	}
}

// Has reports the flag for c.
func (s Status) Has(c Capability) bool {
	switch c {
	case Parser:
		return s.Parser
	case Router:
		return s.Router
	case JSON:
		return s.JSON
	case URL:
		return s.URL
	case Crypto:
		return s.Crypto
	case Compression:
		return s.Compression
	case WebSocket:
		return s.WebSocket
	case Schema:
		return s.Schema
	}
	return false
}

// Proto encodes the status as a protobuf Struct, keyed like the JSON form.
func (s Status) Proto() (*structpb.Struct, error) {
	caps := make(map[string]any, numCapabilities)
	for _, c := range Capabilities() {
		caps[c.String()] = s.Has(c)
	}
	return structpb.NewStruct(map[string]any{
		"enabled":      s.Enabled,
		"loaded":       s.Loaded,
		"path":         s.Path,
		"error":        s.Error,
		"attempts":     s.Attempts,
		"successes":    s.Successes,
		"capabilities": caps,
		"cpu": map[string]any{
			"arch":  s.CPU.Arch,
			"avx2":  s.CPU.AVX2,
			"sse42": s.CPU.SSE42,
			"neon":  s.CPU.NEON,
		},
	})
}
