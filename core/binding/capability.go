package binding

// Capability names one function group an accelerator module may provide.
type Capability uint8

const (
	Parser Capability = iota
	Router
	JSON
	URL
	Crypto
	Compression
	WebSocket
	Schema
	numCapabilities
)

var capabilityNames = [numCapabilities]string{
	Parser:      "parser",
	Router:      "router",
	JSON:        "json",
	URL:         "url",
	Crypto:      "crypto",
	Compression: "compression",
	WebSocket:   "websocket",
	Schema:      "schema",
}

// Export symbols looked up in a loaded module, one per capability.
var capabilitySymbols = [numCapabilities]string{
	Parser:      "NewParser",
	Router:      "NewRouter",
	JSON:        "JSON",
	URL:         "NewURLParser",
	Crypto:      "Crypto",
	Compression: "Compression",
	WebSocket:   "WebSocket",
	Schema:      "Schema",
}

// Capabilities lists every known capability in declaration order.
func Capabilities() []Capability {
	cs := make([]Capability, numCapabilities)
	for i := range cs {
		cs[i] = Capability(i)
	}
	return cs
}

func (c Capability) String() string {
	if c < numCapabilities {
		return capabilityNames[c]
	}
	return "unknown"
}

// Symbol returns the export name that provides c.
func (c Capability) Symbol() string {
	if c < numCapabilities {
		return capabilitySymbols[c]
	}
	return ""
}
