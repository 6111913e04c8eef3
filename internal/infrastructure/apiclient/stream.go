package apiclient

import (
	"bufio"
	"context"
	"strings"
	"time"

	"resty.dev/v3"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/utils/platformerrors"
)

const (
	channelBufferSize    = 100
	eventPrefix          = "event: "
	dataPrefix           = "data: "
	scannerInitialBuffer = 12 * 1024        // 12KB
	scannerMaxBuffer     = 10 * 1024 * 1024 // 10MB
)

// openStream POSTs the request and decodes the SSE response into a
// channel of stream events. The channel always ends with a terminal
// event: server-sent complete/error pass through, and a transport
// failure mid-stream is converted into a final ErrorEvent so consumers
// have a single shutdown path.
func (c *Client) openStream(ctx context.Context, url string, body any) (<-chan chat.StreamEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.streamTimeout)

	req := c.stream.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetHeader("Accept-Encoding", "identity").
		SetBody(body).
		SetDoNotParseResponse(true)

	resp, err := req.Post(url)
	if err != nil {
		cancel()
		return nil, platformerrors.AsError(ctx, platformerrors.LayerTransport, err, "streaming request failed")
	}
	if resp.IsError() {
		cancel()
		return nil, c.errorFromRawResponse(ctx, resp, "streaming request failed")
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		cancel()
		return nil, platformerrors.NewError(ctx, platformerrors.LayerTransport, platformerrors.ErrorTypeStream, "streaming request failed: empty response body", nil)
	}

	events := make(chan chat.StreamEvent, channelBufferSize)
	go func() {
		defer cancel()
		defer close(events)
		defer drainAndClose(resp.RawResponse.Body, c.log)
		c.decodeStream(ctx, resp, events)
	}()
	return events, nil
}

// decodeStream reads SSE frames line by line. A frame is an optional
// "event:" line followed by one or more "data:" lines and a blank
// separator; unnamed frames default to the message event per the SSE
// spec, which this backend never uses, so they decode as unknown.
func (c *Client) decodeStream(ctx context.Context, resp *resty.Response, events chan<- chat.StreamEvent) {
	scanner := bufio.NewScanner(resp.RawResponse.Body)
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)

	var (
		eventName   string
		dataLines   []string
		sawTerminal bool
	)

	flush := func() bool {
		if eventName == "" && len(dataLines) == 0 {
			return true
		}
		ev, err := chat.ParseStreamEvent(eventName, []byte(strings.Join(dataLines, "\n")))
		eventName = ""
		dataLines = nil
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed stream frame")
			return true
		}
		switch ev.(type) {
		case chat.CompleteEvent, chat.ErrorEvent:
			sawTerminal = true
		}
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			c.emitTransportError(events, ctx.Err().Error())
			return
		default:
		}

		line := scanner.Text()
		switch {
		case line == "":
			if !flush() {
				return
			}
			if sawTerminal {
				return
			}
		case strings.HasPrefix(line, eventPrefix):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, eventPrefix))
		case strings.HasPrefix(line, dataPrefix):
			dataLines = append(dataLines, strings.TrimPrefix(line, dataPrefix))
		case strings.HasPrefix(line, ":"):
			// comment frame, keep-alive
		default:
			c.log.Debug().Str("line", line).Msg("ignoring unrecognised stream line")
		}
	}

	if err := scanner.Err(); err != nil {
		c.emitTransportError(events, err.Error())
		return
	}

	// Flush a trailing frame the server did not newline-terminate.
	if !flush() {
		return
	}
	if !sawTerminal {
		c.emitTransportError(events, "stream ended without a terminal event")
	}
}

func (c *Client) emitTransportError(events chan<- chat.StreamEvent, message string) {
	select {
	case events <- chat.ErrorEvent{Error: message, Code: "transport"}:
	case <-time.After(time.Second):
		c.log.Warn().Str("error", message).Msg("consumer gone, dropping transport error event")
	}
}
