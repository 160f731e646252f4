package wire

import "encoding/binary"

// fieldWriter concatenates a sequence of length-prefixed byte fields
// into a single payload, for the multi-field Request/Response frames.
type fieldWriter struct {
	buf []byte
	err error
}

func newFieldWriter() *fieldWriter {
	return &fieldWriter{}
}

func (w *fieldWriter) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *fieldWriter) writeBytes(b []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	w.buf = append(w.buf, length[:]...)
	w.buf = append(w.buf, b...)
}

func (w *fieldWriter) writeString(s string) {
	w.writeBytes([]byte(s))
}

func (w *fieldWriter) bytes() []byte {
	return w.buf
}

// fieldReader walks a payload produced by fieldWriter, extracting fields
// in the same order they were written. Any malformed length prefix sets
// err and every subsequent read becomes a no-op, so callers only need to
// check err once after reading all expected fields.
type fieldReader struct {
	buf []byte
	err error
}

func newFieldReader(payload []byte) *fieldReader {
	return &fieldReader{buf: payload}
}

func (r *fieldReader) readBytes() []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < 4 {
		r.err = errShortField
		return nil
	}
	length := binary.BigEndian.Uint32(r.buf[:4])
	r.buf = r.buf[4:]
	if uint64(length) > uint64(len(r.buf)) || length > maxFrameLen {
		r.err = errShortField
		return nil
	}
	field := r.buf[:length]
	r.buf = r.buf[length:]
	return field
}

func (r *fieldReader) readString() string {
	return string(r.readBytes())
}

var errShortField = shortFieldError{}

type shortFieldError struct{}

func (shortFieldError) Error() string { return "wire: field length exceeds remaining payload" }
