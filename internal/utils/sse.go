package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// maxSSELineSize is the maximum size of a single SSE line (4 MB). Upstream
// providers put a whole JSON event on one line, and tool-call arguments or
// large Gemini parts can get big, but an unterminated line growing past this
// limit is treated as a broken stream.
const maxSSELineSize = 4 * 1024 * 1024

// readChunkSize is the size of each read from the upstream body.
const readChunkSize = 32 * 1024

// doneSentinel is the OpenAI-style end-of-stream payload.
const doneSentinel = "[DONE]"

// ErrSSELineTooLong is returned when a single line exceeds maxSSELineSize.
var ErrSSELineTooLong = errors.New("SSE line exceeds maximum size")

// SSEDecoder turns arbitrary byte chunks into SSE data payloads.
//
// It keeps one buffer across Feed calls, splits on '\n' and holds back the
// trailing partial line for the next chunk. Splitting on a single ASCII byte
// means a UTF-8 sequence cut across two chunks is reassembled before the line
// is ever decoded. Only "data:" lines are considered; everything else (event:,
// id:, comments, keep-alives) is ignored, and a data line whose payload is not
// valid JSON is skipped.
type SSEDecoder struct {
	buffer []byte
	done   bool
}

// NewSSEDecoder returns an empty decoder.
func NewSSEDecoder() *SSEDecoder {
	return &SSEDecoder{}
}

// Done reports whether the [DONE] sentinel has been seen.
func (decoder *SSEDecoder) Done() bool {
	return decoder.done
}

// Feed appends chunk to the buffer and returns the JSON payloads of every
// complete data line it now contains, in order. Once [DONE] is seen the rest
// of the input is discarded.
func (decoder *SSEDecoder) Feed(chunk []byte) ([]json.RawMessage, error) {
	if decoder.done {
		return nil, nil
	}
	decoder.buffer = append(decoder.buffer, chunk...)

	var payloads []json.RawMessage
	for {
		newline := bytes.IndexByte(decoder.buffer, '\n')
		if newline < 0 {
			break
		}
		line := decoder.buffer[:newline]
		decoder.buffer = decoder.buffer[newline+1:]

		payload, ok := decoder.decodeLine(line)
		if decoder.done {
			decoder.buffer = nil
			return payloads, nil
		}
		if ok {
			payloads = append(payloads, payload)
		}
	}

	if len(decoder.buffer) > maxSSELineSize {
		return payloads, fmt.Errorf("%w (%d bytes buffered)", ErrSSELineTooLong, len(decoder.buffer))
	}

	// Compact the buffer so a long stream does not keep the consumed prefix alive.
	if cap(decoder.buffer) > readChunkSize && len(decoder.buffer) < cap(decoder.buffer)/4 {
		decoder.buffer = append([]byte(nil), decoder.buffer...)
	}

	return payloads, nil
}

// Flush decodes whatever is left in the buffer as a final line. It is called
// once the upstream body is exhausted, for servers that do not terminate the
// last event with a newline.
func (decoder *SSEDecoder) Flush() []json.RawMessage {
	if decoder.done || len(decoder.buffer) == 0 {
		return nil
	}
	line := decoder.buffer
	decoder.buffer = nil
	if payload, ok := decoder.decodeLine(line); ok {
		return []json.RawMessage{payload}
	}
	return nil
}

func (decoder *SSEDecoder) decodeLine(line []byte) (json.RawMessage, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if !bytes.HasPrefix(line, []byte("data:")) {
		return nil, false
	}

	data := bytes.TrimSpace(line[len("data:"):])
	if string(data) == doneSentinel {
		decoder.done = true
		return nil, false
	}
	if len(data) == 0 || !gjson.ValidBytes(data) {
		return nil, false
	}

	// Copy out of the shared buffer; it is reused by the next Feed call.
	return append(json.RawMessage(nil), data...), true
}

// SSEScanner reads SSE data payloads from an io.Reader using an SSEDecoder.
type SSEScanner struct {
	reader  io.Reader
	decoder *SSEDecoder
	pending []json.RawMessage
	chunk   []byte
	err     error
}

// NewSSEScanner creates an SSEScanner reading from reader.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	return &SSEScanner{
		reader:  reader,
		decoder: NewSSEDecoder(),
		chunk:   make([]byte, readChunkSize),
	}
}

// Next returns the next JSON payload. It returns io.EOF when the body ends or
// the [DONE] sentinel is reached; any other error is a transport failure.
// Payloads decoded before a failure are always delivered first.
func (scanner *SSEScanner) Next() (json.RawMessage, error) {
	for len(scanner.pending) == 0 {
		if scanner.err != nil {
			return nil, scanner.err
		}
		if scanner.decoder.Done() {
			return nil, io.EOF
		}

		n, readErr := scanner.reader.Read(scanner.chunk)
		if n > 0 {
			payloads, err := scanner.decoder.Feed(scanner.chunk[:n])
			scanner.pending = append(scanner.pending, payloads...)
			if err != nil {
				scanner.err = err
				continue
			}
		}

		switch {
		case readErr == io.EOF:
			scanner.pending = append(scanner.pending, scanner.decoder.Flush()...)
			scanner.err = io.EOF
		case readErr != nil:
			scanner.err = fmt.Errorf("SSE read error: %w", readErr)
		}
	}

	payload := scanner.pending[0]
	scanner.pending = scanner.pending[1:]
	return payload, nil
}
