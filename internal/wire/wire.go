// Package wire implements the gateway's tunnel wire codec (C1): a
// length-prefixed, tagged framing for the three message shapes agent and
// gateway exchange over a persistent TCP socket — String, Request, and
// Response. The encoding is binary-transparent (bodies may contain any
// byte, including NUL) and self-delimiting under partial reads, so it
// survives the same io.Reader/io.Writer boundaries as the teacher's own
// tagged Message envelope in tunnelproto, just expressed as raw frames
// instead of JSON over a websocket message.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nullbridge/tunnelgate/internal/gwerr"
)

// Tag identifies which of the three message shapes a frame carries.
type Tag byte

const (
	TagString Tag = iota
	TagRequest
	TagResponse
)

// maxFrameLen bounds any single length-prefixed field so a corrupt or
// hostile peer cannot force an unbounded allocation. 64 MiB comfortably
// exceeds the 50 MiB response cap spec.md §3 places on agents.
const maxFrameLen = 64 << 20

// HeartbeatMethod is the reserved Request method that the agent must
// answer without performing any outbound LAN fetch.
const HeartbeatMethod = "HEARTBEAT"

// HeartbeatOK is the exact body an agent must send in response to a
// HEARTBEAT Request.
const HeartbeatOK = "heartbeat_ok"

// StringMessage is a bare UTF-8 string frame, used for the handshake
// (auth token, AUTH_SUCCESS/AUTH_FAILED, agent name).
type StringMessage string

// RequestMessage is a forwarded HTTP request (or a HEARTBEAT probe),
// addressed to the agent named ClientName.
type RequestMessage struct {
	ClientName string
	Method     string
	URL        string
	Body       []byte
}

// ResponseMessage is the agent's reply to a Request.
type ResponseMessage struct {
	Status int
	Body   []byte
}

// WriteMessage serializes msg as a single tagged frame to w. Callers are
// responsible for ensuring only one writer is active on w at a time
// (tunnel sessions enforce this with requestMutex, per spec.md §4.4).
func WriteMessage(w io.Writer, msg any) error {
	var tag Tag
	var payload []byte
	var err error

	switch m := msg.(type) {
	case StringMessage:
		tag = TagString
		payload = []byte(m)
	case RequestMessage:
		tag = TagRequest
		payload, err = encodeRequest(m)
	case ResponseMessage:
		tag = TagResponse
		payload = encodeResponse(m)
	default:
		return fmt.Errorf("wire: unsupported message type %T", msg)
	}
	if err != nil {
		return err
	}

	header := make([]byte, 5)
	header[0] = byte(tag)
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadMessage blocks until a complete frame has arrived on r, or returns
// an error: io.EOF / a wrapped net.Error on a closed or timed-out stream,
// or a gwerr.ErrFrameCorrupt-wrapping error when the frame's tag or
// length prefix is malformed.
func ReadMessage(r io.Reader) (any, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	tag := Tag(header[0])
	length := binary.BigEndian.Uint32(header[1:])
	if length > maxFrameLen {
		return nil, fmt.Errorf("wire: frame length %d exceeds limit: %w", length, gwerr.ErrFrameCorrupt)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	switch tag {
	case TagString:
		return StringMessage(payload), nil
	case TagRequest:
		return decodeRequest(payload)
	case TagResponse:
		return decodeResponse(payload)
	default:
		return nil, fmt.Errorf("wire: unknown tag %d: %w", tag, gwerr.ErrFrameCorrupt)
	}
}

// NewReader wraps r in a buffered reader sized for typical frame traffic,
// mirroring the teacher's own use of bufio around its frame streams.
func NewReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, 4096)
}

func encodeRequest(m RequestMessage) ([]byte, error) {
	buf := newFieldWriter()
	buf.writeString(m.ClientName)
	buf.writeString(m.Method)
	buf.writeString(m.URL)
	buf.writeBytes(m.Body)
	return buf.bytes(), buf.err
}

func decodeRequest(payload []byte) (RequestMessage, error) {
	fr := newFieldReader(payload)
	clientName := fr.readString()
	method := fr.readString()
	url := fr.readString()
	body := fr.readBytes()
	if fr.err != nil {
		return RequestMessage{}, fmt.Errorf("wire: corrupt request frame: %w", gwerr.ErrFrameCorrupt)
	}
	return RequestMessage{ClientName: clientName, Method: method, URL: url, Body: body}, nil
}

func encodeResponse(m ResponseMessage) []byte {
	buf := newFieldWriter()
	var statusBytes [4]byte
	binary.BigEndian.PutUint32(statusBytes[:], uint32(int32(m.Status)))
	buf.raw(statusBytes[:])
	buf.writeBytes(m.Body)
	return buf.bytes()
}

func decodeResponse(payload []byte) (ResponseMessage, error) {
	if len(payload) < 4 {
		return ResponseMessage{}, fmt.Errorf("wire: corrupt response frame: %w", gwerr.ErrFrameCorrupt)
	}
	status := int32(binary.BigEndian.Uint32(payload[:4]))
	fr := newFieldReader(payload[4:])
	body := fr.readBytes()
	if fr.err != nil {
		return ResponseMessage{}, fmt.Errorf("wire: corrupt response frame: %w", gwerr.ErrFrameCorrupt)
	}
	return ResponseMessage{Status: int(status), Body: body}, nil
}
