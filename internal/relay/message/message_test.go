package message

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_WireFormat(test *testing.T) {
	cases := []struct {
		m        Message
		expected string
	}{
		{Ping(), "\"Ping\"\n"},
		{Disconnect(), "\"Disconnect\"\n"},
		{Invalid(), "\"InvalidMessage\"\n"},
		{Text("hi"), "{\"Text\":\"hi\"}\n"},
		{Text(""), "{\"Text\":\"\"}\n"},
		{Error("boom"), "{\"Error\":\"boom\"}\n"},
	}
	for _, c := range cases {
		b, err := Encode(c.m)
		require.NoError(test, err, c.m.String())
		assert.Equal(test, c.expected, string(b))
	}
}

func TestEncode_UnknownKind(test *testing.T) {
	_, err := Encode(Message{})
	assert.Error(test, err)
	_, err = Encode(Message{Kind: Kind(42)})
	assert.Error(test, err)
}

func TestDecode_RoundTrip(test *testing.T) {
	cases := []Message{
		Ping(),
		Disconnect(),
		Invalid(),
		Text(""),
		Text("hello"),
		Text(`she said "hi" \ bye`),
		Text("Hello, 世界 ⌘"),
		Text("line\nbreak\ttab"),
		Error(""),
		Error("connection reset"),
	}
	for _, m := range cases {
		b, err := Encode(m)
		require.NoError(test, err)
		assert.Equal(test, 1, bytes.Count(b, []byte("\n")), "encoded message must be a single line: %q", b)
		decoded, err := Decode(b)
		require.NoError(test, err)
		assert.Equal(test, m, decoded)
	}
}

func TestDecode_AlternativeForms(test *testing.T) {
	cases := []struct {
		line     string
		expected Message
	}{
		{`{"Ping":null}`, Ping()},
		{` "Disconnect" `, Disconnect()},
		{"{\"Text\": \"x\"}\r\n", Text("x")},
	}
	for _, c := range cases {
		m, err := Decode([]byte(c.line))
		require.NoError(test, err, c.line)
		assert.Equal(test, c.expected, m)
	}
}

func TestDecode_Errors(test *testing.T) {
	cases := []string{
		"",
		"\n",
		"not json",
		`"Pong"`,
		`"Text"`,
		`{"Text":null}`,
		`{"Text":1}`,
		`{"Ping":"x"}`,
		`{"Text":"a","Error":"b"}`,
		`{}`,
		`42`,
	}
	for _, c := range cases {
		_, err := Decode([]byte(c))
		var decodeErr *DecodeError
		assert.True(test, errors.As(err, &decodeErr), "line %q: expected DecodeError, got %v", c, err)
	}
}

func TestDecoder_Stream(test *testing.T) {
	buf := bytes.Buffer{}
	sent := []Message{Ping(), Text("one"), Text("two"), Disconnect()}
	for _, m := range sent {
		require.NoError(test, Write(&buf, m))
	}
	d := NewDecoder(&buf, 0)
	for _, expected := range sent {
		m, err := d.Decode()
		require.NoError(test, err)
		assert.Equal(test, expected, m)
	}
	_, err := d.Decode()
	assert.Equal(test, io.EOF, err)
}

func TestDecoder_UnterminatedLastLine(test *testing.T) {
	d := NewDecoder(strings.NewReader("\"Ping\"\n{\"Text\":\"tail\"}"), 0)
	m, err := d.Decode()
	require.NoError(test, err)
	assert.Equal(test, Ping(), m)
	m, err = d.Decode()
	require.NoError(test, err)
	assert.Equal(test, Text("tail"), m)
	_, err = d.Decode()
	assert.Equal(test, io.EOF, err)
}

func TestDecoder_LineTooLong(test *testing.T) {
	long, err := Encode(Text(strings.Repeat("x", 100)))
	require.NoError(test, err)
	d := NewDecoder(bytes.NewReader(long), 32)
	_, err = d.Decode()
	assert.Equal(test, ErrLineTooLong, err)

	// a line larger than internal buffer but within the limit
	d = NewDecoder(bufio.NewReader(bytes.NewReader(long)), len(long))
	m, err := d.Decode()
	require.NoError(test, err)
	assert.Equal(test, Text(strings.Repeat("x", 100)), m)
}

func TestMessage_String(test *testing.T) {
	assert.Equal(test, "Ping", Ping().String())
	assert.Equal(test, "'hi'", Text("hi").String())
	assert.Equal(test, "error: boom", Error("boom").String())
	assert.Equal(test, "Invalid message", Invalid().String())
	assert.Equal(test, "Kind(9)", Kind(9).String())
	assert.True(test, Text("").IsData())
	assert.False(test, Disconnect().IsData())
}
