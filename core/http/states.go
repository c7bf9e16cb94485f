package http

// State is the externally visible phase of a request parser. Both the
// fallback parser and the accelerator report the same State for the same
// input prefix.
type State uint8

const (
	StateStart State = iota
	StateMethod
	StateTarget
	StateVersion
	StateHeaderName
	StateHeaderValue
	// StateHeadersDone and StateBodyNone are transient: a Write call never
	// returns while the parser is in them.
	StateHeadersDone
	StateBodyFixed
	StateBodyChunked
	StateBodyNone
	StateComplete
	StateError
)

var stateNames = [...]string{
	StateStart:       "START",
	StateMethod:      "METHOD",
	StateTarget:      "TARGET",
	StateVersion:     "VERSION",
	StateHeaderName:  "HEADER_NAME",
	StateHeaderValue: "HEADER_VALUE",
	StateHeadersDone: "HEADERS_DONE",
	StateBodyFixed:   "BODY_FIXED",
	StateBodyChunked: "BODY_CHUNKED",
	StateBodyNone:    "BODY_NONE",
	StateComplete:    "COMPLETE",
	StateError:       "ERROR",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// step is the fallback parser's fine-grained position. Several steps share
// one State; the CR/LF sub-steps keep a line terminator split across two
// writes resumable.
type step uint8

const (
	stepStart step = iota
	stepMethod
	stepTarget
	stepVersion
	stepVersionLF
	stepFieldName
	stepFieldValue
	stepFieldValueLF
	stepFieldsLF
	stepBody
	stepChunkSize
	stepChunkExt
	stepChunkSizeLF
	stepChunkData
	stepChunkDataCR
	stepChunkDataLF
	stepComplete
	stepError
)

var stepStates = [...]State{
	stepStart:        StateStart,
	stepMethod:       StateMethod,
	stepTarget:       StateTarget,
	stepVersion:      StateVersion,
	stepVersionLF:    StateVersion,
	stepFieldName:    StateHeaderName,
	stepFieldValue:   StateHeaderValue,
	stepFieldValueLF: StateHeaderValue,
	stepFieldsLF:     StateHeaderName,
	stepBody:         StateBodyFixed,
	stepChunkSize:    StateBodyChunked,
	stepChunkExt:     StateBodyChunked,
	stepChunkSizeLF:  StateBodyChunked,
	stepChunkData:    StateBodyChunked,
	stepChunkDataCR:  StateBodyChunked,
	stepChunkDataLF:  StateBodyChunked,
	stepComplete:     StateComplete,
	stepError:        StateError,
}
