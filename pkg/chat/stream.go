package chat

// Streaming replies arrive as ordered text deltas followed by a
// terminal sentinel. The sentinel is a distinct frame, not a data
// value, so reply text containing the literal "[DONE]" cannot end a
// stream early.

// StreamDone is the terminal SSE frame payload marking the end of a
// streamed reply.
const StreamDone = "[DONE]"

// StreamChunk is one data frame of a streamed reply.
type StreamChunk struct {
	Text string `json:"text"`
}

// StreamBuffer reassembles a streamed reply. Chunks are concatenated
// verbatim in arrival order; a single reader consumes the result.
type StreamBuffer struct {
	parts []string
	done  bool
}

// Append adds a delta. Appends after Finish are dropped.
func (b *StreamBuffer) Append(text string) {
	if b.done {
		return
	}
	b.parts = append(b.parts, text)
}

// Finish marks the stream complete.
func (b *StreamBuffer) Finish() {
	b.done = true
}

// Done reports whether the sentinel has been seen.
func (b *StreamBuffer) Done() bool {
	return b.done
}

// String returns the reply reconstructed so far.
func (b *StreamBuffer) String() string {
	var s string
	for _, p := range b.parts {
		s += p
	}
	return s
}
