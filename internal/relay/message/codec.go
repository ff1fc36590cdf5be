package message

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxLineSize - default limit for a single encoded message, terminator included.
const DefaultMaxLineSize = 64 * 1024

// ErrLineTooLong - returns by Decoder when incoming line exceeds the size limit.
// The stream is out of sync after this error and should be dropped.
var ErrLineTooLong = errors.New("message.Decoder: line exceeds size limit")

// DecodeError - the line was read completely but does not contain a valid message.
type DecodeError struct {
	Line []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("message: can't decode %q: %v", bytes.TrimRight(e.Line, "\r\n"), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode - returns JSON representation of message followed by single newline.
func Encode(m Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Write - encodes message and writes the line into w.
// Buffered writers are not flushed.
func Write(w io.Writer, m Message) error {
	b, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Decode - parses message from one line, trailing newline is optional.
func Decode(line []byte) (Message, error) {
	m := Message{}
	if err := json.Unmarshal(bytes.TrimRight(line, "\r\n"), &m); err != nil {
		return Message{}, &DecodeError{Line: line, Err: err}
	}
	return m, nil
}

// Decoder - reads messages from a stream, exactly one line per message.
type Decoder struct {
	r   *bufio.Reader
	max int
}

// NewDecoder - builds Decoder over r. Non-positive maxLineSize means DefaultMaxLineSize.
func NewDecoder(r io.Reader, maxLineSize int) *Decoder {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	size := maxLineSize
	if size > 4096 {
		size = 4096
	}
	return &Decoder{r: bufio.NewReaderSize(r, size), max: maxLineSize}
}

// Decode - reads next line and parses it.
// Unterminated data before EOF is treated as the last line.
func (d *Decoder) Decode() (Message, error) {
	line, err := d.readLine()
	if err != nil {
		return Message{}, err
	}
	return Decode(line)
}

func (d *Decoder) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		if len(line)+len(chunk) > d.max {
			return nil, ErrLineTooLong
		}
		line = append(line, chunk...)
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			return line, nil
		default:
			return nil, err
		}
	}
}
