package openai

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

var doneMarker = []byte("[DONE]")

// sseReader yields the data payload of each server-sent event. Multiple
// data lines of one event are joined with a newline; comments and other
// fields are skipped.
type sseReader struct {
	r *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event payload, or io.EOF once the body is drained.
func (s *sseReader) Next() ([]byte, error) {
	var data [][]byte
	for {
		line, err := s.r.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")
		if len(line) > 0 {
			data = appendData(data, line)
		}
		if err != nil {
			if len(data) > 0 && errors.Is(err, io.EOF) {
				return bytes.Join(data, []byte("\n")), nil
			}
			return nil, err //nolint:wrapcheck
		}
		if len(line) == 0 && len(data) > 0 {
			return bytes.Join(data, []byte("\n")), nil
		}
	}
}

func appendData(dst [][]byte, line []byte) [][]byte {
	val, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		return dst
	}
	val = bytes.TrimPrefix(val, []byte(" "))
	return append(dst, bytes.Clone(val))
}
