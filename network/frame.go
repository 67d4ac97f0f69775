package network

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/domainmessage"
)

// maxFrameLen bounds a single wire frame, guarding against a peer
// claiming an absurd length prefix before any bytes are read.
const maxFrameLen = domainmessage.MaxBlockPayload + 1<<20

// writeFrame writes e as a single length-prefixed frame.
func writeFrame(w io.Writer, e *Envelope) error {
	buf := &sizingWriter{}
	if err := e.serialize(buf); err != nil {
		return errors.Wrap(err, "serializing envelope")
	}
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(buf.b)))
	if _, err := w.Write(lenBytes[:]); err != nil {
		return errors.Wrap(err, "writing frame length")
	}
	if _, err := w.Write(buf.b); err != nil {
		return errors.Wrap(err, "writing frame body")
	}
	return nil
}

// readFrame reads a single length-prefixed frame and decodes its envelope.
func readFrame(r io.Reader) (*Envelope, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBytes[:])
	if uint64(n) > maxFrameLen {
		return nil, errors.Errorf("network: frame length %d exceeds maximum %d", n, maxFrameLen)
	}
	body := io.LimitReader(r, int64(n))
	e, err := deserializeEnvelope(body)
	if err != nil {
		return nil, errors.Wrap(err, "decoding frame")
	}
	return e, nil
}

// sizingWriter accumulates bytes so writeFrame can compute the frame's
// length prefix before writing the body.
type sizingWriter struct{ b []byte }

func (s *sizingWriter) Write(p []byte) (int, error) {
	s.b = append(s.b, p...)
	return len(p), nil
}
