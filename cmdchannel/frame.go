package cmdchannel

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/domainmessage"
)

// maxFrameLen bounds a single command-channel frame, using the same
// length-prefixed wire format as the gossip network.
const maxFrameLen = domainmessage.MaxBlockPayload

type sizingWriter struct{ b []byte }

func (s *sizingWriter) Write(p []byte) (int, error) {
	s.b = append(s.b, p...)
	return len(p), nil
}

func writeRequestFrame(w io.Writer, req *Request) error {
	buf := &sizingWriter{}
	if err := req.serialize(buf); err != nil {
		return errors.Wrap(err, "serializing request")
	}
	return writeLengthPrefixed(w, buf.b)
}

func readRequestFrame(r io.Reader) (*Request, error) {
	body, err := readLengthPrefixed(r)
	if err != nil {
		return nil, err
	}
	return deserializeRequest(bytes.NewReader(body))
}

func writeResponseFrame(w io.Writer, resp *Response) error {
	buf := &sizingWriter{}
	if err := resp.serialize(buf); err != nil {
		return errors.Wrap(err, "serializing response")
	}
	return writeLengthPrefixed(w, buf.b)
}

func readResponseFrame(r io.Reader) (*Response, error) {
	body, err := readLengthPrefixed(r)
	if err != nil {
		return nil, err
	}
	return deserializeResponse(bytes.NewReader(body))
}

func writeLengthPrefixed(w io.Writer, body []byte) error {
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(body)))
	if _, err := w.Write(lenBytes[:]); err != nil {
		return errors.Wrap(err, "writing frame length")
	}
	_, err := w.Write(body)
	return err
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBytes[:])
	if uint64(n) > maxFrameLen {
		return nil, errors.Errorf("cmdchannel: frame length %d exceeds maximum %d", n, maxFrameLen)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "reading frame body")
	}
	return body, nil
}
