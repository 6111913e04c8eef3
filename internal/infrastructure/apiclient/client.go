// Package apiclient implements the backend Transport over HTTP and
// server-sent events.
package apiclient

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"jan-client/chat-core/internal/domain/chat"
	"jan-client/chat-core/internal/domain/chatstore"
	"jan-client/chat-core/internal/infrastructure/logger"
	"jan-client/chat-core/internal/utils/platformerrors"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultStreamTimeout = 120 * time.Second
)

// Options configures the client. Zero timeouts fall back to defaults.
type Options struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	StreamTimeout time.Duration
}

// Client talks to the chat backend. It satisfies chatstore.Transport.
// Streaming requests run on a dedicated resty client without a
// response timeout; the stream deadline is enforced via context.
type Client struct {
	client        *resty.Client
	stream        *resty.Client
	baseURL       string
	streamTimeout time.Duration
	validate      *validator.Validate
	log           zerolog.Logger
}

var _ chatstore.Transport = (*Client)(nil)

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = defaultStreamTimeout
	}

	client := resty.New().
		SetHeader("User-Agent", "Jan-Chat-Core/1.0").
		SetTimeout(opts.Timeout)
	stream := resty.New().
		SetHeader("User-Agent", "Jan-Chat-Core/1.0")
	if strings.TrimSpace(opts.Token) != "" {
		client.SetAuthToken(opts.Token)
		stream.SetAuthToken(opts.Token)
	}

	return &Client{
		client:        client,
		stream:        stream,
		baseURL:       normalizeBaseURL(opts.BaseURL),
		streamTimeout: opts.StreamTimeout,
		validate:      validator.New(),
		log:           logger.GetLogger().With().Str("component", "apiclient").Logger(),
	}
}

// Close releases the underlying HTTP clients.
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return err
	}
	return c.stream.Close()
}

func (c *Client) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	var conv chat.Conversation
	resp, err := c.prepareRequest(ctx).
		SetResult(&conv).
		Get(c.endpoint("/v1/conversations/" + conversationID))
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerTransport, err, "get conversation request failed")
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "get conversation failed")
	}
	return &conv, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]chat.ConversationSummary, error) {
	var summaries []chat.ConversationSummary
	resp, err := c.prepareRequest(ctx).
		SetResult(&summaries).
		Get(c.endpoint("/v1/conversations"))
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerTransport, err, "list conversations request failed")
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "list conversations failed")
	}
	return summaries, nil
}

func (c *Client) CreateConversation(ctx context.Context, req chatstore.CreateConversationRequest) (*chat.Conversation, error) {
	var conv chat.Conversation
	resp, err := c.prepareRequest(ctx).
		SetBody(req).
		SetResult(&conv).
		Post(c.endpoint("/v1/conversations"))
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerTransport, err, "create conversation request failed")
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "create conversation failed")
	}
	return &conv, nil
}

func (c *Client) ListMessages(ctx context.Context, conversationID, branchID string) ([]chat.Message, error) {
	var messages []chat.Message
	req := c.prepareRequest(ctx).SetResult(&messages)
	if branchID != "" {
		req.SetQueryParam("branch_id", branchID)
	}
	resp, err := req.Get(c.endpoint("/v1/conversations/" + conversationID + "/messages"))
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerTransport, err, "list messages request failed")
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "list messages failed")
	}
	return messages, nil
}

func (c *Client) SwitchBranch(ctx context.Context, conversationID, branchID string) error {
	resp, err := c.prepareRequest(ctx).
		Post(c.endpoint("/v1/conversations/" + conversationID + "/branches/" + branchID + "/switch"))
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerTransport, err, "switch branch request failed")
	}
	if resp.IsError() {
		return c.errorFromResponse(ctx, resp, "switch branch failed")
	}
	return nil
}

func (c *Client) ListMessageBranches(ctx context.Context, messageID string) ([]chat.MessageBranch, error) {
	var branches []chat.MessageBranch
	resp, err := c.prepareRequest(ctx).
		SetResult(&branches).
		Get(c.endpoint("/v1/messages/" + messageID + "/branches"))
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerTransport, err, "list branches request failed")
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "list branches failed")
	}
	return branches, nil
}

func (c *Client) ResolveFiles(ctx context.Context, fileIDs []string) ([]chat.File, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	var files []chat.File
	resp, err := c.prepareRequest(ctx).
		SetBody(map[string][]string{"file_ids": fileIDs}).
		SetResult(&files).
		Post(c.endpoint("/v1/files/resolve"))
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerTransport, err, "resolve files request failed")
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "resolve files failed")
	}
	return files, nil
}

func (c *Client) SendMessageStream(ctx context.Context, req chatstore.SendMessageRequest) (<-chan chat.StreamEvent, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerTransport, platformerrors.ErrorTypeValidation, "invalid send message request", err)
	}
	return c.openStream(ctx, c.endpoint("/v1/conversations/"+req.ConversationID+"/messages/stream"), req)
}

func (c *Client) EditMessageStream(ctx context.Context, req chatstore.EditMessageRequest) (<-chan chat.StreamEvent, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerTransport, platformerrors.ErrorTypeValidation, "invalid edit message request", err)
	}
	return c.openStream(ctx, c.endpoint("/v1/conversations/"+req.ConversationID+"/messages/"+req.MessageID+"/edit"), req)
}

func (c *Client) prepareRequest(ctx context.Context) *resty.Request {
	return c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json")
}

func (c *Client) endpoint(path string) string {
	if c.baseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}

func (c *Client) errorFromResponse(ctx context.Context, resp *resty.Response, message string) error {
	errType := platformerrors.ErrorTypeExternal
	if resp.StatusCode() == 404 {
		errType = platformerrors.ErrorTypeNotFound
	}
	body := strings.TrimSpace(resp.String())
	if body == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerTransport, errType,
			fmt.Sprintf("%s: status %d", message, resp.StatusCode()), nil)
	}
	return platformerrors.NewError(ctx, platformerrors.LayerTransport, errType,
		fmt.Sprintf("%s: status %d: %s", message, resp.StatusCode(), body), nil)
}

// errorFromRawResponse is the unparsed-response variant used by
// streaming requests, where resty never buffers the body.
func (c *Client) errorFromRawResponse(ctx context.Context, resp *resty.Response, message string) error {
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return platformerrors.NewError(ctx, platformerrors.LayerTransport, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("%s: status %d", message, resp.StatusCode()), nil)
	}
	defer drainAndClose(resp.RawResponse.Body, c.log)
	body, err := io.ReadAll(resp.RawResponse.Body)
	if err != nil || len(strings.TrimSpace(string(body))) == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerTransport, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("%s: status %d", message, resp.StatusCode()), nil)
	}
	return platformerrors.NewError(ctx, platformerrors.LayerTransport, platformerrors.ErrorTypeExternal,
		fmt.Sprintf("%s: status %d: %s", message, resp.StatusCode(), strings.TrimSpace(string(body))), nil)
}

func normalizeBaseURL(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

// drainAndClose discards any unread bytes before closing so the
// underlying connection stays reusable.
func drainAndClose(body io.ReadCloser, log zerolog.Logger) {
	if body == nil {
		return
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		log.Debug().Err(err).Msg("unable to drain response body")
	}
	if err := body.Close(); err != nil {
		log.Error().Err(err).Msg("unable to close response body")
	}
}
