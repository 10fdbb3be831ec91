package session

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

// corkThreshold is §4.7's "messages smaller than 1 KiB skip compression"
// rule.
const corkThreshold = 1024

// outMessage is one framed message waiting to be written to the socket.
type outMessage struct {
	Header wire.Header
	Body   []byte
}

// encode concatenates the header and body, the wire format's framing.
func (m outMessage) encode() []byte {
	out := make([]byte, 0, wire.HeaderSize+len(m.Body))
	out = append(out, wire.EncodeHeader(m.Header)...)
	out = append(out, m.Body...)
	return out
}

// Outbound is the per-session concurrent send queue. The socket loop's
// defer hook drains it with corking, so messages queued back-to-back
// within one drain share a single TCP write, per §4.7.
type Outbound struct {
	mu     sync.Mutex
	queue  []outMessage
	closed bool
}

func newOutbound() *Outbound {
	return &Outbound{}
}

// Push enqueues a message for the next drain. It is a no-op after Close.
func (o *Outbound) Push(m outMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.queue = append(o.queue, m)
}

// Drain removes every currently-queued message, corking them into a
// single byte slice per write call: each frame is compressed
// individually with DEFLATE only when its body is at least
// corkThreshold bytes, then all frames are concatenated so the caller
// issues one socket write for the whole batch.
func (o *Outbound) Drain() []byte {
	o.mu.Lock()
	pending := o.queue
	o.queue = nil
	o.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	var batch bytes.Buffer
	for _, m := range pending {
		body := m.Body
		if len(body) >= corkThreshold {
			if compressed, ok := deflate(body); ok {
				body = compressed
			}
		}
		framed := outMessage{Header: m.Header, Body: body}
		batch.Write(framed.encode())
	}
	return batch.Bytes()
}

// Close marks the queue closed; further Push calls are dropped.
func (o *Outbound) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.queue = nil
}

func deflate(body []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(body); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
