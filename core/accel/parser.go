// Package accel holds the accelerator implementations of the parser and
// router. They are linked into the accelerator plugin and must behave
// exactly like the reference implementations in core/http and core/router.
package accel

import (
	"bytes"
	"unsafe"

	"github.com/searchktools/fast-runtime/core/http"
)

// unsafeString converts byte slice to string without allocation.
// The arena is append-only until Reset, so the bytes never change under
// the returned string while the request is live.
func unsafeString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

type phase uint8

const (
	phStart phase = iota
	phMethod
	phTarget
	phVersion
	phVersionLF
	phName
	phValue
	phValueLF
	phFieldsLF
	phBody
	phChunkSize
	phChunkExt
	phChunkSizeLF
	phChunkData
	phChunkDataCR
	phChunkDataLF
	phComplete
	phError
)

var phaseStates = [...]http.State{
	phStart:       http.StateStart,
	phMethod:      http.StateMethod,
	phTarget:      http.StateTarget,
	phVersion:     http.StateVersion,
	phVersionLF:   http.StateVersion,
	phName:        http.StateHeaderName,
	phValue:       http.StateHeaderValue,
	phValueLF:     http.StateHeaderValue,
	phFieldsLF:    http.StateHeaderName,
	phBody:        http.StateBodyFixed,
	phChunkSize:   http.StateBodyChunked,
	phChunkExt:    http.StateBodyChunked,
	phChunkSizeLF: http.StateBodyChunked,
	phChunkData:   http.StateBodyChunked,
	phChunkDataCR: http.StateBodyChunked,
	phChunkDataLF: http.StateBodyChunked,
	phComplete:    http.StateComplete,
	phError:       http.StateError,
}

// Parser scans whole runs of a token per step instead of single bytes and
// keeps every header string as a view into one arena.
type Parser struct {
	limits http.Limits
	phase  phase
	req    http.Request

	arena []byte
	mark  int // start of the open token in arena
	name  string

	valued  bool
	trailer bool

	headerBytes int
	remaining   int64
	chunkDigits int
	extBytes    int

	err error
}

// NewParser returns an accelerated parser in StateStart.
func NewParser(limits http.Limits) *Parser {
	p := &Parser{
		limits: limits.Normalize(),
		arena:  make([]byte, 0, 1024),
	}
	p.req.ContentLength = -1
	return p
}

func (p *Parser) State() http.State {
	if p.trailer && p.phase >= phName && p.phase <= phFieldsLF {
		return http.StateBodyChunked
	}
	return phaseStates[p.phase]
}

func (p *Parser) Err() error {
	return p.err
}

func (p *Parser) Result() (*http.Request, error) {
	if p.phase != phComplete {
		return nil, http.ErrNotComplete
	}
	return &p.req, nil
}

func (p *Parser) Reset() {
	p.phase = phStart
	p.req.Reset()
	p.arena = p.arena[:0]
	p.mark = 0
	p.name = ""
	p.valued = false
	p.trailer = false
	p.headerBytes = 0
	p.remaining = 0
	p.chunkDigits = 0
	p.extBytes = 0
	p.err = nil
}

// Write has the same contract as http.Parser.Write.
func (p *Parser) Write(data []byte) (int, error) {
	switch p.phase {
	case phError:
		return 0, p.err
	case phComplete:
		return 0, http.ErrWriteAfterComplete
	}

	i := 0
	for i < len(data) && p.phase != phComplete {
		var (
			n   int
			err error
		)
		if p.phase < phBody {
			// the window ends where the header budget runs out
			avail := p.limits.MaxHeaderBytes - p.headerBytes
			if avail <= 0 {
				return i, p.fail(http.ErrHeaderTooLarge)
			}
			w := data[i:]
			if len(w) > avail {
				w = w[:avail]
			}
			n, err = p.head(w)
			p.headerBytes += n
		} else {
			n, err = p.body(data[i:])
		}
		i += n
		if err != nil {
			return i, p.fail(err)
		}
	}
	return i, nil
}

func (p *Parser) token() []byte {
	return p.arena[p.mark:]
}

// closeToken returns the open token as a string and starts a new one.
func (p *Parser) closeToken() string {
	s := unsafeString(p.arena[p.mark:])
	p.mark = len(p.arena)
	return s
}

// dropToken discards the open token.
func (p *Parser) dropToken() {
	p.arena = p.arena[:p.mark]
}

// head consumes request line and field bytes from w. It returns the bytes
// consumed, or the offset of the offending byte with an error.
func (p *Parser) head(w []byte) (int, error) {
	switch p.phase {
	case phStart:
		k := 0
		for k < len(w) && (w[k] == '\r' || w[k] == '\n') {
			k++
		}
		if k < len(w) {
			p.phase = phMethod
		}
		return k, nil

	case phMethod:
		return p.method(w)

	case phTarget:
		e := bytes.IndexByte(w, ' ')
		run := w
		if e >= 0 {
			run = w[:e]
		}
		for k, c := range run {
			if !http.IsTargetByte(c) {
				return k, http.ErrInvalidTarget
			}
		}
		p.arena = append(p.arena, run...)
		if e < 0 {
			return len(w), nil
		}
		if len(p.token()) == 0 {
			return e, http.ErrInvalidTarget
		}
		p.req.Target, p.req.RawQuery = http.SplitTarget(p.closeToken())
		p.phase = phVersion
		return e + 1, nil

	case phVersion:
		for k, c := range w {
			pos := len(p.token())
			if http.VersionComplete(pos) {
				if c != '\r' {
					return k, http.ErrInvalidVersion
				}
				v := p.token()
				p.req.ProtoMajor = int(v[5] - '0')
				p.req.ProtoMinor = int(v[7] - '0')
				p.dropToken()
				p.phase = phVersionLF
				return k + 1, nil
			}
			if err := http.CheckVersionByte(pos, c); err != nil {
				return k, err
			}
			p.arena = append(p.arena, c)
		}
		return len(w), nil

	case phVersionLF, phValueLF, phFieldsLF:
		if w[0] != '\n' {
			return 0, http.ErrInvalidCRLF
		}
		return p.lineEnd()

	case phName:
		return p.fieldName(w)

	case phValue:
		return p.fieldValue(w)
	}
	return 0, nil
}

func (p *Parser) method(w []byte) (int, error) {
	e := bytes.IndexByte(w, ' ')
	run := w
	if e >= 0 {
		run = w[:e]
	}
	room := http.MaxMethodLen - len(p.token())
	for k, c := range run {
		if k == room || !http.IsMethodByte(c) {
			return k, http.ErrInvalidMethod
		}
	}
	p.arena = append(p.arena, run...)
	if e < 0 {
		return len(w), nil
	}
	m, ok := http.LookupMethod(p.token())
	if !ok {
		return e, http.ErrInvalidMethod
	}
	p.req.Method = m
	p.dropToken()
	p.phase = phTarget
	return e + 1, nil
}

func (p *Parser) fieldName(w []byte) (int, error) {
	if len(p.token()) == 0 {
		switch w[0] {
		case '\r':
			p.phase = phFieldsLF
			return 1, nil
		case '\n':
			return 0, http.ErrInvalidCRLF
		}
	}
	k := 0
	for k < len(w) && http.IsTokenByte(w[k]) {
		k++
	}
	p.arena = append(p.arena, w[:k]...)
	if k == len(w) {
		return k, nil
	}
	if w[k] != ':' || len(p.token()) == 0 {
		return k, http.ErrInvalidHeaderName
	}
	p.name = p.closeToken()
	p.valued = false
	p.phase = phValue
	return k + 1, nil
}

func (p *Parser) fieldValue(w []byte) (int, error) {
	k := 0
	if !p.valued {
		for k < len(w) && http.IsOWS(w[k]) {
			k++
		}
	}
	start := k
	for k < len(w) && http.IsValueByte(w[k]) {
		k++
	}
	if k > start {
		p.valued = true
		p.arena = append(p.arena, w[start:k]...)
	}
	if k == len(w) {
		return k, nil
	}
	switch w[k] {
	case '\r':
		p.phase = phValueLF
		return k + 1, nil
	case '\n':
		return k, http.ErrInvalidCRLF
	}
	return k, http.ErrInvalidHeaderValue
}

// lineEnd handles the LF that terminates the request line, a field line or
// the field section.
func (p *Parser) lineEnd() (int, error) {
	switch p.phase {
	case phVersionLF:
		p.phase = phName
	case phValueLF:
		p.arena = p.arena[:p.mark+len(http.TrimOWS(p.token()))]
		h := http.Header{Name: p.name, Value: p.closeToken()}
		if p.trailer {
			p.req.Trailers = append(p.req.Trailers, h)
		} else {
			p.req.Headers = append(p.req.Headers, h)
		}
		p.name = ""
		p.phase = phName
	case phFieldsLF:
		if p.trailer {
			p.finish()
			return 1, nil
		}
		f, err := http.ResolveFraming(p.req.Headers, p.limits)
		if err != nil {
			return 0, err
		}
		p.req.ContentLength = f.Length
		switch f.Kind {
		case http.BodyFixed:
			p.remaining = f.Length
			p.phase = phBody
		case http.BodyChunked:
			p.req.Chunked = true
			p.remaining = 0
			p.phase = phChunkSize
		default:
			p.finish()
		}
	}
	return 1, nil
}

// body consumes body and chunk framing bytes, which do not count against
// the header budget.
func (p *Parser) body(w []byte) (int, error) {
	switch p.phase {
	case phBody:
		n := p.copyBody(w)
		if p.remaining == 0 {
			p.finish()
		}
		return n, nil

	case phChunkSize:
		for k, c := range w {
			v := http.HexValue(c)
			if v >= 0 {
				if p.chunkDigits == http.MaxChunkSizeDigits {
					return k, http.ErrInvalidChunkSize
				}
				p.remaining = p.remaining<<4 | int64(v)
				p.chunkDigits++
				continue
			}
			if p.chunkDigits == 0 || (c != ';' && c != '\r') {
				return k, http.ErrInvalidChunkSize
			}
			if p.limits.BodyExceeds(int64(len(p.req.Body)) + p.remaining) {
				return k, http.ErrPayloadTooLarge
			}
			if c == ';' {
				p.extBytes = 0
				p.phase = phChunkExt
			} else {
				p.phase = phChunkSizeLF
			}
			return k + 1, nil
		}
		return len(w), nil

	case phChunkExt:
		room := http.MaxChunkExtBytes - p.extBytes
		for k, c := range w {
			switch c {
			case '\r':
				p.phase = phChunkSizeLF
				return k + 1, nil
			case '\n':
				return k, http.ErrInvalidCRLF
			}
			if k == room {
				return k, http.ErrInvalidChunkSize
			}
		}
		p.extBytes += len(w)
		return len(w), nil

	case phChunkSizeLF:
		if w[0] != '\n' {
			return 0, http.ErrInvalidCRLF
		}
		p.chunkDigits = 0
		if p.remaining == 0 {
			p.trailer = true
			p.headerBytes = 0
			p.phase = phName
		} else {
			p.phase = phChunkData
		}
		return 1, nil

	case phChunkData:
		n := p.copyBody(w)
		if p.remaining == 0 {
			p.phase = phChunkDataCR
		}
		return n, nil

	case phChunkDataCR:
		if w[0] != '\r' {
			return 0, http.ErrInvalidCRLF
		}
		p.phase = phChunkDataLF
		return 1, nil

	case phChunkDataLF:
		if w[0] != '\n' {
			return 0, http.ErrInvalidCRLF
		}
		p.phase = phChunkSize
		return 1, nil
	}
	return 0, nil
}

func (p *Parser) copyBody(w []byte) int {
	n := len(w)
	if int64(n) > p.remaining {
		n = int(p.remaining)
	}
	p.req.Body = append(p.req.Body, w[:n]...)
	p.remaining -= int64(n)
	return n
}

func (p *Parser) finish() {
	p.req.Complete = true
	p.phase = phComplete
}

func (p *Parser) fail(err error) error {
	p.phase = phError
	p.err = err
	return err
}
