// Package stream carries StreamChunk sequences from providers to callers and
// folds them into a Response.
package stream

import (
	"context"
	"errors"
	"sync"
	"unicode/utf8"

	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/proto"
)

// ErrUnexpectedEnd is the cause of the error chunk synthesized when a
// provider stream stops without a terminal chunk.
var ErrUnexpectedEnd = errors.New("stream ended without a finish marker")

// Stream is a finite, non-restartable sequence of chunks. The last chunk a
// Stream yields is always terminal (end or error).
type Stream interface {
	// Next advances to the next chunk. It returns false once the terminal
	// chunk has been consumed or the stream was closed.
	Next() bool
	// Current returns the chunk Next advanced to.
	Current() proto.StreamChunk
	// Close releases the stream. It is safe to call more than once.
	Close() error
}

// Producer writes chunks through emit until it is done. emit returns false
// when the consumer is gone or a terminal chunk was sent; the producer should
// stop then.
type Producer func(ctx context.Context, emit func(proto.StreamChunk) bool) error

// Pipe runs produce in its own goroutine and exposes its chunks as a Stream.
//
// If produce returns without emitting a terminal chunk, Pipe emits one: a
// cancellation error when ctx is done, produce's error when it has one, and
// ErrUnexpectedEnd otherwise.
func Pipe(ctx context.Context, produce Producer) Stream {
	ctx, cancel := context.WithCancel(ctx)
	p := &pipe{
		ctx:    ctx,
		cancel: cancel,
		ch:     make(chan proto.StreamChunk, 16),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run(produce)
	return p
}

type pipe struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan proto.StreamChunk
	closed chan struct{}
	done   chan struct{}
	once   sync.Once

	cur      proto.StreamChunk
	terminal bool
}

func (p *pipe) run(produce Producer) {
	defer close(p.done)
	defer close(p.ch)

	sentTerminal := false
	emit := func(c proto.StreamChunk) bool {
		if sentTerminal {
			return false
		}
		select {
		case <-p.ctx.Done():
			return false
		case p.ch <- c:
			sentTerminal = c.IsTerminal()
			return !sentTerminal
		}
	}

	err := produce(p.ctx, emit)
	if sentTerminal {
		return
	}

	var final proto.StreamChunk
	switch {
	case p.ctx.Err() != nil:
		final = proto.ErrorChunk(errs.Cancelled(p.ctx.Err()))
	case errors.Is(err, context.Canceled):
		final = proto.ErrorChunk(errs.Cancelled(err))
	case err != nil:
		final = proto.ErrorChunk(err)
	default:
		final = proto.ErrorChunk(errs.NewProviderError("", errs.ErrNetwork, ErrUnexpectedEnd))
	}
	select {
	case p.ch <- final:
	case <-p.closed:
	}
}

func (p *pipe) Next() bool {
	if p.terminal {
		return false
	}
	select {
	case <-p.closed:
		return false
	default:
	}
	c, ok := <-p.ch
	if !ok {
		return false
	}
	p.cur = c
	p.terminal = c.IsTerminal()
	return true
}

func (p *pipe) Current() proto.StreamChunk { return p.cur }

func (p *pipe) Close() error {
	p.once.Do(func() {
		close(p.closed)
		p.cancel()
	})
	<-p.done
	return nil
}

// FromChunks returns a Stream over a fixed chunk sequence. A sequence without
// a terminal chunk gets an ErrUnexpectedEnd error chunk appended.
func FromChunks(chunks ...proto.StreamChunk) Stream {
	if len(chunks) == 0 || !chunks[len(chunks)-1].IsTerminal() {
		chunks = append(chunks, proto.ErrorChunk(errs.NewProviderError("", errs.ErrNetwork, ErrUnexpectedEnd)))
	}
	return &sliceStream{chunks: chunks, pos: -1}
}

type sliceStream struct {
	chunks []proto.StreamChunk
	pos    int
	closed bool
}

func (s *sliceStream) Next() bool {
	if s.closed || s.pos+1 >= len(s.chunks) {
		return false
	}
	if s.pos >= 0 && s.chunks[s.pos].IsTerminal() {
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream) Current() proto.StreamChunk {
	if s.pos < 0 {
		return proto.StreamChunk{}
	}
	return s.chunks[s.pos]
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

// Decompose splits a complete response into the chunk sequence a streaming
// provider would have produced for it. Text, reasoning and tool call
// arguments are split into deltas of at most size runes; size <= 0 sends each
// in one delta.
func Decompose(resp proto.Response, size int) []proto.StreamChunk {
	var chunks []proto.StreamChunk
	for i, msg := range resp.Messages {
		chunks = append(chunks, proto.StartMessage(i, msg.Role))
		for j, part := range msg.Parts {
			switch p := part.(type) {
			case proto.Text:
				chunks = append(chunks, proto.StartPart(i, j, proto.Text{}))
				chunks = appendDeltas(chunks, i, j, p.Text, size)
				chunks = append(chunks, proto.EndPart(i, j))
			case proto.Reasoning:
				chunks = append(chunks, proto.StartPart(i, j, proto.Reasoning{Signature: p.Signature}))
				chunks = appendDeltas(chunks, i, j, p.Text, size)
				chunks = append(chunks, proto.EndPart(i, j))
			case proto.ToolCall:
				chunks = append(chunks, proto.StartPart(i, j, proto.ToolCall{ID: p.ID, Name: p.Name}))
				chunks = appendDeltas(chunks, i, j, string(p.Arguments), size)
				chunks = append(chunks, proto.EndPart(i, j))
			default:
				chunks = append(chunks, proto.StartPart(i, j, p))
			}
		}
	}
	if resp.Usage != (proto.Usage{}) {
		chunks = append(chunks, proto.UsageChunk(resp.Usage))
	}
	return append(chunks, proto.End(resp.FinishReason))
}

// FromResponse streams a complete response.
func FromResponse(resp proto.Response) Stream {
	return FromChunks(Decompose(resp, 0)...)
}

func appendDeltas(chunks []proto.StreamChunk, msg, part int, s string, size int) []proto.StreamChunk {
	if s == "" {
		return chunks
	}
	if size <= 0 {
		return append(chunks, proto.Delta(msg, part, s))
	}
	for len(s) > 0 {
		n, cut := 0, 0
		for cut < len(s) && n < size {
			_, w := utf8.DecodeRuneInString(s[cut:])
			cut += w
			n++
		}
		chunks = append(chunks, proto.Delta(msg, part, s[:cut]))
		s = s[cut:]
	}
	return chunks
}
