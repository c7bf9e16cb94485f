package http

// Reason is the stable code carried by a ParseError.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonInvalidMethod
	ReasonInvalidTarget
	ReasonInvalidVersion
	ReasonUnsupportedVersion
	ReasonInvalidCRLF
	ReasonInvalidHeaderName
	ReasonInvalidHeaderValue
	ReasonInvalidContentLength
	ReasonInvalidTransferEncoding
	ReasonConflictingFraming
	ReasonInvalidChunkSize
	ReasonHeaderTooLarge
	ReasonPayloadTooLarge
)

// ParseError reports malformed or oversized input. The parser that returned
// it is in StateError and stays there until Reset.
type ParseError struct {
	Reason Reason
	msg    string
	status int
}

func (e *ParseError) Error() string {
	return e.msg
}

// Status is the HTTP status a server should answer with.
func (e *ParseError) Status() int {
	return e.status
}

func newParseError(reason Reason, status int, msg string) *ParseError {
	return &ParseError{Reason: reason, msg: msg, status: status}
}

var (
	// ErrInvalidMethod .
	ErrInvalidMethod = newParseError(ReasonInvalidMethod, 400, "invalid HTTP method")
	// ErrInvalidTarget .
	ErrInvalidTarget = newParseError(ReasonInvalidTarget, 400, "invalid request target")
	// ErrInvalidVersion .
	ErrInvalidVersion = newParseError(ReasonInvalidVersion, 400, "invalid HTTP version")
	// ErrUnsupportedVersion .
	ErrUnsupportedVersion = newParseError(ReasonUnsupportedVersion, 505, "unsupported HTTP version")
	// ErrInvalidCRLF .
	ErrInvalidCRLF = newParseError(ReasonInvalidCRLF, 400, "invalid cr/lf at the end of line")
	// ErrInvalidHeaderName .
	ErrInvalidHeaderName = newParseError(ReasonInvalidHeaderName, 400, "invalid character in header name")
	// ErrInvalidHeaderValue .
	ErrInvalidHeaderValue = newParseError(ReasonInvalidHeaderValue, 400, "invalid character in header value")
	// ErrInvalidContentLength .
	ErrInvalidContentLength = newParseError(ReasonInvalidContentLength, 400, "invalid Content-Length")
	// ErrInvalidTransferEncoding .
	ErrInvalidTransferEncoding = newParseError(ReasonInvalidTransferEncoding, 501, "unsupported Transfer-Encoding")
	// ErrConflictingFraming .
	ErrConflictingFraming = newParseError(ReasonConflictingFraming, 400, "conflicting message framing headers")
	// ErrInvalidChunkSize .
	ErrInvalidChunkSize = newParseError(ReasonInvalidChunkSize, 400, "invalid chunk size")
	// ErrHeaderTooLarge .
	ErrHeaderTooLarge = newParseError(ReasonHeaderTooLarge, 431, "request header section too large")
	// ErrPayloadTooLarge .
	ErrPayloadTooLarge = newParseError(ReasonPayloadTooLarge, 413, "payload too large")
)

// ContractError reports a caller bug, as opposed to bad input.
type ContractError struct {
	msg string
}

func (e *ContractError) Error() string {
	return "http parser: " + e.msg
}

var (
	// ErrNotComplete is returned by Result before the request completed.
	ErrNotComplete = &ContractError{"result requested before the request completed"}
	// ErrWriteAfterComplete is returned by Write on a completed parser that
	// was not Reset.
	ErrWriteAfterComplete = &ContractError{"write after the request completed; call Reset first"}
)
