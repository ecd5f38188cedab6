package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.telegram.org"

// ClientConfig configures a Client.
type ClientConfig struct {
	Token   string
	BaseURL string
	// HTTPClient defaults to a client without a global timeout; long polling
	// sets its own deadline per call.
	HTTPClient *http.Client
	// SendRate limits outgoing send/edit calls per second. Zero disables limiting.
	SendRate  float64
	SendBurst int
}

// Client talks to the Telegram Bot API over HTTPS.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type apiResponse struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result"`
	ErrorCode   int                 `json:"error_code"`
	Description string              `json:"description"`
	Parameters  *ResponseParameters `json:"parameters"`
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram: token is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{baseURL: baseURL, token: cfg.Token, httpClient: httpClient}
	if cfg.SendRate > 0 {
		burst := cfg.SendBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}
	return c, nil
}

func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// call posts params as JSON and decodes the result into out (which may be nil).
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram: failed to encode %s params: %w", method, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	return c.do(request, method, out)
}

func (c *Client) do(request *http.Request, method string, out any) error {
	response, err := c.httpClient.Do(request)
	if err != nil {
		// the token is part of the URL; never let it leak into logs
		return fmt.Errorf("telegram: request %s failed: %w", method, redact(err, c.token))
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("telegram: failed to read %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("telegram: unexpected %d response from %s: %s", response.StatusCode, method, truncate(string(body), 200))
	}

	if !envelope.OK {
		apiErr := &APIError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
		if apiErr.Code == 0 {
			apiErr.Code = response.StatusCode
		}
		if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("telegram: failed to decode %s result: %w", method, err)
	}
	return nil
}

func redact(err error, token string) error {
	msg := err.Error()
	if !strings.Contains(msg, token) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, token, "<token>"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	var updates []Update
	params := getUpdatesParams{Offset: offset, Timeout: timeout, AllowedUpdates: allowedUpdates}
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	params := setWebhookParams{URL: url, SecretToken: secret, AllowedUpdates: allowedUpdates}
	return c.call(ctx, "setWebhook", params, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", struct{}{}, nil)
}

func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) SendPhoto(ctx context.Context, params SendPhotoParams) (*Message, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var msg Message
	if err := c.call(ctx, "sendPhoto", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditMessageText(ctx context.Context, params EditMessageTextParams) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	err := c.call(ctx, "editMessageText", params, nil)
	if err != nil && isNotModified(err) {
		return nil
	}
	return err
}

// isNotModified matches the 400 Telegram returns when an edit changes nothing.
func isNotModified(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeBadRequest &&
		strings.Contains(apiErr.Description, "message is not modified")
}

func (c *Client) CreateForumTopic(ctx context.Context, chatID int64, name string) (*ForumTopic, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var topic ForumTopic
	if err := c.call(ctx, "createForumTopic", createForumTopicParams{ChatID: chatID, Name: name}, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, params AnswerCallbackQueryParams) error {
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// SendDocument uploads r as a file named fileName.
func (c *Client) SendDocument(ctx context.Context, chatID int64, fileName string, r io.Reader, caption string) (*Message, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}
	if caption != "" {
		fields["caption"] = caption
		fields["parse_mode"] = ParseModeHTML
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	part, err := form.CreateFormFile("document", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("telegram: failed to buffer document: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), &buf)
	if err != nil {
		return nil, fmt.Errorf("telegram: failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", form.FormDataContentType())

	var msg Message
	if err := c.do(request, "sendDocument", &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
