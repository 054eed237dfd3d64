package upstream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

var (
	doneSentinel = []byte("[DONE]")
	dataPrefix   = []byte("data:")
)

// Stream relays an upstream event stream line by line. While relaying it
// decodes each data line as a completion chunk and accumulates the delta
// content lengths; the upstream does not report usage on streams, so the
// accumulated character count / 4 stands in for the token count.
type Stream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	chars  int
	done   bool
	log    zerolog.Logger
}

func newStream(body io.ReadCloser, log zerolog.Logger) *Stream {
	return &Stream{
		body:   body,
		reader: bufio.NewReader(body),
		log:    log,
	}
}

// Next returns the next raw line to relay, newline included. It returns
// io.EOF when the upstream sends its [DONE] sentinel (which is not relayed)
// or closes the connection; a cancelled request context surfaces as the
// transport error from the underlying read.
func (s *Stream) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}

	line, err := s.reader.ReadBytes('\n')
	if len(line) == 0 {
		if err == nil {
			err = io.EOF
		}
		s.done = true
		return nil, err
	}
	if err != nil {
		// Final line without a trailing newline; deliver it, then stop.
		s.done = true
	}

	if bytes.Contains(line, doneSentinel) {
		s.done = true
		return nil, io.EOF
	}

	s.accumulate(line)
	return line, nil
}

// accumulate parses a data line for incremental content. Malformed lines are
// skipped, never fatal.
func (s *Stream) accumulate(line []byte) {
	trimmed := bytes.TrimSpace(line)
	if !bytes.HasPrefix(trimmed, dataPrefix) {
		return
	}
	payload := bytes.TrimSpace(bytes.TrimPrefix(trimmed, dataPrefix))
	if len(payload) == 0 {
		return
	}

	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(payload, &chunk); err != nil {
		s.log.Debug().Err(err).Msg("skipping unparseable stream line")
		return
	}
	for _, choice := range chunk.Choices {
		s.chars += len(choice.Delta.Content)
	}
}

// Tokens estimates the tokens consumed so far: accumulated content
// characters / 4. Valid mid-stream, so a cancelled stream still yields the
// usage accumulated up to the cancellation.
func (s *Stream) Tokens() int {
	return s.chars / 4
}

// Close releases the upstream connection.
func (s *Stream) Close() error {
	return s.body.Close()
}
