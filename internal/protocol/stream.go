package protocol

import (
	"fmt"
	"io"
)

// ReadMessage reads exactly one frame from a TCP stream. The header is
// validated before the body is read, so a foreign peer is rejected without
// waiting for bytes it will never send. I/O errors are returned unwrapped
// enough for errors.Is against io.EOF and net timeouts.
func ReadMessage(r io.Reader) (Message, error) {
	var header [HeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	t, err := decodeHeader(header[:])
	if err != nil {
		return nil, err
	}

	n, _ := FrameLength(t)
	frame := make([]byte, n)
	copy(frame, header[:])
	if _, err := io.ReadFull(r, frame[HeaderLength:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read %s body: %w", t, err)
	}
	return decodeBody(t, frame[HeaderLength:])
}

// WriteMessage encodes m and writes it in a single call.
func WriteMessage(w io.Writer, m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write %s: %w", m.Type(), err)
	}
	return nil
}
