package http

// Parser is the reference streaming HTTP/1.x request parser. It consumes
// bytes one at a time and keeps every partial token in explicit fields, so
// a chunk boundary may fall anywhere.
//
// A Parser belongs to one connection and must not be used concurrently.
type Parser struct {
	limits Limits
	step   step
	req    Request

	tok     []byte // partial method, target, version, field name or value
	name    string // completed field name waiting for its value
	valued  bool   // leading OWS of the current value has been skipped
	trailer bool   // fields belong to the chunked trailer section

	headerBytes int
	remaining   int64 // bytes left in the fixed body or the current chunk
	chunkDigits int
	extBytes    int

	err error
}

// NewParser returns a parser in StateStart.
func NewParser(limits Limits) *Parser {
	p := &Parser{
		limits: limits.Normalize(),
		tok:    make([]byte, 0, 64),
	}
	p.req.ContentLength = -1
	return p
}

// Limits returns the effective limits.
func (p *Parser) Limits() Limits {
	return p.limits
}

// State returns the current phase.
func (p *Parser) State() State {
	if p.trailer && p.step >= stepFieldName && p.step <= stepFieldsLF {
		return StateBodyChunked
	}
	return stepStates[p.step]
}

// Err returns the error that moved the parser to StateError.
func (p *Parser) Err() error {
	return p.err
}

// Result returns the parsed request once State is StateComplete.
func (p *Parser) Result() (*Request, error) {
	if p.step != stepComplete {
		return nil, ErrNotComplete
	}
	return &p.req, nil
}

// Reset returns the parser to StateStart, keeping its buffers.
func (p *Parser) Reset() {
	p.step = stepStart
	p.req.Reset()
	p.tok = p.tok[:0]
	p.name = ""
	p.valued = false
	p.trailer = false
	p.headerBytes = 0
	p.remaining = 0
	p.chunkDigits = 0
	p.extBytes = 0
	p.err = nil
}

// Write feeds data to the parser. It stops after the byte that completes a
// request, so n < len(data) means the rest belongs to the next request.
// On a parse error n counts the bytes accepted before the offending one.
func (p *Parser) Write(data []byte) (n int, err error) {
	switch p.step {
	case stepError:
		return 0, p.err
	case stepComplete:
		return 0, ErrWriteAfterComplete
	}

	for i := 0; i < len(data); i++ {
		c := data[i]

		if p.step < stepBody {
			p.headerBytes++
			if p.headerBytes > p.limits.MaxHeaderBytes {
				return i, p.fail(ErrHeaderTooLarge)
			}
		}

		switch p.step {
		case stepStart:
			// RFC 7230 3.5: ignore empty lines before the request line
			if c == '\r' || c == '\n' {
				continue
			}
			p.step = stepMethod
			fallthrough

		case stepMethod:
			if c == ' ' {
				m, ok := LookupMethod(p.tok)
				if !ok {
					return i, p.fail(ErrInvalidMethod)
				}
				p.req.Method = m
				p.tok = p.tok[:0]
				p.step = stepTarget
				continue
			}
			if !IsMethodByte(c) || len(p.tok) == MaxMethodLen {
				return i, p.fail(ErrInvalidMethod)
			}
			p.tok = append(p.tok, c)

		case stepTarget:
			if c == ' ' {
				if len(p.tok) == 0 {
					return i, p.fail(ErrInvalidTarget)
				}
				p.req.Target, p.req.RawQuery = SplitTarget(string(p.tok))
				p.tok = p.tok[:0]
				p.step = stepVersion
				continue
			}
			if !IsTargetByte(c) {
				return i, p.fail(ErrInvalidTarget)
			}
			p.tok = append(p.tok, c)

		case stepVersion:
			if VersionComplete(len(p.tok)) {
				if c != '\r' {
					return i, p.fail(ErrInvalidVersion)
				}
				p.req.ProtoMajor = int(p.tok[5] - '0')
				p.req.ProtoMinor = int(p.tok[7] - '0')
				p.tok = p.tok[:0]
				p.step = stepVersionLF
				continue
			}
			if err := CheckVersionByte(len(p.tok), c); err != nil {
				return i, p.fail(err)
			}
			p.tok = append(p.tok, c)

		case stepVersionLF:
			if c != '\n' {
				return i, p.fail(ErrInvalidCRLF)
			}
			p.step = stepFieldName

		case stepFieldName:
			if len(p.tok) == 0 {
				switch c {
				case '\r':
					p.step = stepFieldsLF
					continue
				case '\n':
					return i, p.fail(ErrInvalidCRLF)
				}
			}
			if c == ':' {
				if len(p.tok) == 0 {
					return i, p.fail(ErrInvalidHeaderName)
				}
				p.name = string(p.tok)
				p.tok = p.tok[:0]
				p.valued = false
				p.step = stepFieldValue
				continue
			}
			// also rejects obs-fold and whitespace before the colon
			if !IsTokenByte(c) {
				return i, p.fail(ErrInvalidHeaderName)
			}
			p.tok = append(p.tok, c)

		case stepFieldValue:
			switch {
			case c == '\r':
				p.step = stepFieldValueLF
			case c == '\n':
				return i, p.fail(ErrInvalidCRLF)
			case !p.valued && IsOWS(c):
			case !IsValueByte(c):
				return i, p.fail(ErrInvalidHeaderValue)
			default:
				p.valued = true
				p.tok = append(p.tok, c)
			}

		case stepFieldValueLF:
			if c != '\n' {
				return i, p.fail(ErrInvalidCRLF)
			}
			p.addField()
			p.step = stepFieldName

		case stepFieldsLF:
			if c != '\n' {
				return i, p.fail(ErrInvalidCRLF)
			}
			if p.trailer {
				p.finish()
				return i + 1, nil
			}
			if err := p.headersDone(); err != nil {
				return i, err
			}
			if p.step == stepComplete {
				return i + 1, nil
			}

		case stepBody:
			i += p.copyBody(data[i:]) - 1
			if p.remaining == 0 {
				p.finish()
				return i + 1, nil
			}

		case stepChunkSize:
			if v := HexValue(c); v >= 0 {
				if p.chunkDigits == MaxChunkSizeDigits {
					return i, p.fail(ErrInvalidChunkSize)
				}
				p.remaining = p.remaining<<4 | int64(v)
				p.chunkDigits++
				continue
			}
			if p.chunkDigits == 0 || (c != ';' && c != '\r') {
				return i, p.fail(ErrInvalidChunkSize)
			}
			if p.limits.BodyExceeds(int64(len(p.req.Body)) + p.remaining) {
				return i, p.fail(ErrPayloadTooLarge)
			}
			if c == ';' {
				p.extBytes = 0
				p.step = stepChunkExt
			} else {
				p.step = stepChunkSizeLF
			}

		case stepChunkExt:
			switch c {
			case '\r':
				p.step = stepChunkSizeLF
			case '\n':
				return i, p.fail(ErrInvalidCRLF)
			default:
				p.extBytes++
				if p.extBytes > MaxChunkExtBytes {
					return i, p.fail(ErrInvalidChunkSize)
				}
			}

		case stepChunkSizeLF:
			if c != '\n' {
				return i, p.fail(ErrInvalidCRLF)
			}
			p.chunkDigits = 0
			if p.remaining == 0 {
				p.trailer = true
				p.headerBytes = 0
				p.step = stepFieldName
				continue
			}
			p.step = stepChunkData

		case stepChunkData:
			i += p.copyBody(data[i:]) - 1
			if p.remaining == 0 {
				p.step = stepChunkDataCR
			}

		case stepChunkDataCR:
			if c != '\r' {
				return i, p.fail(ErrInvalidCRLF)
			}
			p.step = stepChunkDataLF

		case stepChunkDataLF:
			if c != '\n' {
				return i, p.fail(ErrInvalidCRLF)
			}
			p.step = stepChunkSize
		}
	}

	return len(data), nil
}

// copyBody appends up to p.remaining bytes of data to the body.
func (p *Parser) copyBody(data []byte) int {
	n := len(data)
	if int64(n) > p.remaining {
		n = int(p.remaining)
	}
	p.req.Body = append(p.req.Body, data[:n]...)
	p.remaining -= int64(n)
	return n
}

func (p *Parser) addField() {
	h := Header{Name: p.name, Value: string(TrimOWS(p.tok))}
	if p.trailer {
		p.req.Trailers = append(p.req.Trailers, h)
	} else {
		p.req.Headers = append(p.req.Headers, h)
	}
	p.name = ""
	p.tok = p.tok[:0]
}

func (p *Parser) headersDone() error {
	f, err := ResolveFraming(p.req.Headers, p.limits)
	if err != nil {
		return p.fail(err)
	}
	p.req.ContentLength = f.Length

	switch f.Kind {
	case BodyFixed:
		p.remaining = f.Length
		p.step = stepBody
	case BodyChunked:
		p.req.Chunked = true
		p.remaining = 0
		p.step = stepChunkSize
	default:
		p.finish()
	}
	return nil
}

func (p *Parser) finish() {
	p.req.Complete = true
	p.step = stepComplete
}

func (p *Parser) fail(err error) error {
	p.step = stepError
	p.err = err
	return err
}
