package core

import "errors"

// HTTP header constants
const (
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
	HeaderConnection    = "Connection"
	HeaderAllow         = "Allow"
)

// ErrServerClosed is returned by Serve and Run after Shutdown or Close.
var ErrServerClosed = errors.New("fast-runtime: server closed")
