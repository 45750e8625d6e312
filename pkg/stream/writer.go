package stream

import "context"

// Writer is the producer side of a chunk stream: a single goroutine
// computing chunks for one call writes them here in production order
// (spec §4's ordering guarantee ii). Grounded in the teacher's
// events.Connection, which is likewise owned by exactly one goroutine.
type Writer struct {
	ch chan Chunk
}

// NewWriter creates a bounded chunk channel. A small buffer absorbs
// bursts (e.g. a tool_call immediately followed by its terminal chunk)
// without blocking the producer on a slow transport reader. buffer may
// be 0 for an unbuffered (fully synchronous) channel.
func NewWriter(buffer int) *Writer {
	if buffer < 0 {
		buffer = 0
	}
	return &Writer{ch: make(chan Chunk, buffer)}
}

// Emit sends a chunk to the consumer, respecting ctx cancellation so a
// dropped transport connection does not leak the producer goroutine.
func (w *Writer) Emit(ctx context.Context, c Chunk) error {
	select {
	case w.ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals no more chunks will be produced. Must be called exactly
// once, by the producer, after its final chunk (which should already
// carry IsFinal=true).
func (w *Writer) Close() {
	close(w.ch)
}

// Chunks exposes the consumer side for ranging.
func (w *Writer) Chunks() <-chan Chunk {
	return w.ch
}

// Collect drains every chunk from a producer function run on its own
// goroutine, returning them in order once the producer finishes. Used
// by callers (tests, the subtask executor forwarding a worker's stream)
// that need the whole sequence rather than incremental delivery.
func Collect(ctx context.Context, produce func(ctx context.Context, w *Writer)) []Chunk {
	w := NewWriter(16)
	go func() {
		defer w.Close()
		produce(ctx, w)
	}()

	var out []Chunk
	for c := range w.Chunks() {
		out = append(out, c)
	}
	return out
}
