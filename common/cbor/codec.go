package cbor

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

// Maximum message size.
const maxMessageSize = 16 * 1024 * 1024 // 16 MiB

var (
	errMessageTooLarge  = errors.New("codec: message too large")
	errMessageMalformed = errors.New("codec: message is malformed")
)

// MessageReader is a reader wrapper that decodes CBOR-encoded Message structures.
type MessageReader struct {
	sync.Mutex

	reader *bufio.Reader
	module string
}

// Read deserializes a single CBOR-encoded Message from the underlying reader.
func (c *MessageReader) Read(msg interface{}) error {
	c.Lock()
	defer c.Unlock()

	// Read 32-bit length prefix.
	rawLength := make([]byte, 4)
	if _, err := io.ReadAtLeast(c.reader, rawLength, 4); err != nil {
		return err
	}

	length := binary.BigEndian.Uint32(rawLength)
	if length > maxMessageSize {
		return errMessageTooLarge
	}

	// Decode message bytes.
	r := io.LimitReader(c.reader, int64(length))
	dec := NewDecoder(r)
	if err := dec.Decode(msg); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errMessageMalformed
		}
		return err
	}
	if uint32(dec.NumBytesRead()) != length {
		return errMessageMalformed
	}

	return nil
}

// MessageWriter is a writer wrapper that encodes Messages structures to CBOR.
type MessageWriter struct {
	sync.Mutex

	writer io.Writer
	module string
}

// Write serializes a single Message to CBOR and writes it to the underlying writer.
func (c *MessageWriter) Write(msg interface{}) error {
	c.Lock()
	defer c.Unlock()

	data := Marshal(msg)
	length := len(data)
	if length > maxMessageSize {
		return errMessageTooLarge
	}

	// Write 32-bit length prefix and encoded data.
	buf := make([]byte, 4, 4+length)
	binary.BigEndian.PutUint32(buf, uint32(length))
	buf = append(buf, data...)
	if _, err := c.writer.Write(buf); err != nil {
		return err
	}
	return nil
}

// MessageCodec is a length-prefixed Message encoder/decoder.
type MessageCodec struct {
	MessageReader
	MessageWriter
}

// NewMessageReader creates a new CBOR message reader.
func NewMessageReader(rw io.Reader, module string) *MessageReader {
	return &MessageReader{
		reader: bufio.NewReader(rw),
		module: module,
	}
}

// NewMessageWriter creates a new CBOR message writer.
func NewMessageWriter(rw io.Writer, module string) *MessageWriter {
	return &MessageWriter{
		writer: rw,
		module: module,
	}
}

// NewMessageCodec constructs a new Message encoder/decoder.
func NewMessageCodec(rw io.ReadWriter, module string) *MessageCodec {
	return &MessageCodec{
		MessageReader: MessageReader{
			reader: bufio.NewReader(rw),
			module: module,
		},
		MessageWriter: MessageWriter{
			writer: rw,
			module: module,
		},
	}
}
