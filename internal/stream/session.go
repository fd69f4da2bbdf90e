package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"drivechat/internal/domain"
)

// State of a streaming session.
type State int

const (
	StateInit State = iota
	StateRequesting
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FragmentFunc receives each extracted fragment synchronously, in stream
// order. It is never invoked after the session reaches a terminal state.
type FragmentFunc func(fragment string)

// errorBodyLimit caps the excerpt read from a non-2xx response body.
const errorBodyLimit = 512

// Session orchestrates decoder and extractor over the lifetime of one
// streaming request: INIT → REQUESTING → STREAMING → {COMPLETED, FAILED,
// CANCELLED}. A Session is single-use.
//
// No timeout is imposed here beyond what the HTTP client enforces; a stalled
// stream with no cancellation suspends indefinitely. That matches the
// contract of the upstream endpoints and is deliberate.
type Session struct {
	client     *http.Client
	onFragment FragmentFunc
	logger     *slog.Logger

	state        State
	decoder      *LineDecoder
	full         strings.Builder
	receivedData bool
}

// NewSession creates a session that delivers fragments to onFragment.
func NewSession(client *http.Client, onFragment FragmentFunc, logger *slog.Logger) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	return &Session{
		client:     client,
		onFragment: onFragment,
		logger:     logger,
		state:      StateInit,
		decoder:    NewLineDecoder(),
	}
}

// State returns the session's current state.
func (s *Session) State() State { return s.state }

// Text returns the accumulated reply so far.
func (s *Session) Text() string { return s.full.String() }

// Run issues req and consumes its body as an event stream. It returns the
// full accumulated text on completion. Failure modes map to the stream
// error taxonomy: transport errors, in-stream error events, empty-stream /
// empty-content detection, and domain.ErrStreamCancelled when ctx is done.
func (s *Session) Run(ctx context.Context, req *http.Request) (string, error) {
	if s.state != StateInit {
		return "", fmt.Errorf("session already ran (state %s)", s.state)
	}

	// Pre-flight cancellation check.
	if err := ctx.Err(); err != nil {
		s.state = StateCancelled
		return "", domain.ErrStreamCancelled
	}

	s.state = StateRequesting
	resp, err := s.client.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			s.state = StateCancelled
			return "", domain.ErrStreamCancelled
		}
		s.state = StateFailed
		return "", &domain.StreamTransportError{Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.state = StateFailed
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return "", &domain.StreamTransportError{
			Status: resp.StatusCode,
			Detail: strings.TrimSpace(string(excerpt)),
		}
	}

	s.state = StateStreaming
	if err := s.consume(ctx, resp.Body); err != nil {
		if errors.Is(err, domain.ErrStreamCancelled) {
			s.state = StateCancelled
		} else {
			s.state = StateFailed
		}
		return s.full.String(), err
	}

	// Transport success alone is not enough: a stream that carried no data
	// and a stream whose events held no content are failures of their own.
	if !s.receivedData {
		s.state = StateFailed
		return "", &domain.StreamContentError{EmptyStream: true}
	}
	if s.full.Len() == 0 {
		s.state = StateFailed
		return "", &domain.StreamContentError{}
	}

	s.state = StateCompleted
	return s.full.String(), nil
}

// consume runs the chunk-read loop until EOF, feeding the decoder and
// dispatching each complete line through the extractor.
func (s *Session) consume(ctx context.Context, body io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return domain.ErrStreamCancelled
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			s.receivedData = true
			for _, line := range s.decoder.Feed(buf[:n]) {
				if lineErr := s.handleLine(line); lineErr != nil {
					return lineErr
				}
			}
		}
		if err == io.EOF {
			// Any carry-buffer remainder is an incomplete trailing line and
			// contributes no content.
			if pending := s.decoder.Pending(); pending > 0 && s.logger != nil {
				s.logger.Debug("discarding incomplete trailing line", "bytes", pending)
			}
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return domain.ErrStreamCancelled
			}
			return &domain.StreamTransportError{Detail: err.Error(), Err: err}
		}
	}
}

func (s *Session) handleLine(line string) error {
	event := ExtractLine(line)
	switch event.Kind {
	case EventFragment:
		s.full.WriteString(event.Fragment)
		if s.onFragment != nil {
			s.onFragment(event.Fragment)
		}
	case EventDone:
		// Logical end marker: keep reading, the transport decides the
		// actual end of the stream.
		if s.logger != nil {
			s.logger.Debug("received stream end sentinel")
		}
	case EventError:
		return event.Err
	}
	return nil
}
