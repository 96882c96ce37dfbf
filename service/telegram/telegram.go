package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/Veetaha/snowpity/service/persist"
	"github.com/Veetaha/snowpity/util/retry"
)

const defaultAPIBase = "https://api.telegram.org"

// Client is a Telegram Bot API client. It is safe for concurrent use; the
// API's rate limits surface as 429s which the retry policy absorbs.
type Client struct {
	httpClient *http.Client
	apiBase    string
	token      string
	retry      retry.Retry
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithAPIBase(base string) ClientOption {
	return func(client *Client) {
		client.apiBase = base
	}
}

func WithRetry(r retry.Retry) ClientOption {
	return func(client *Client) {
		client.retry = r
	}
}

func NewClient(token string, opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		apiBase:    defaultAPIBase,
		token:      token,
		retry:      retry.DefaultRetry,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// InputFile is a file to upload: exactly one of URL, Bytes or Path is set.
// URL makes Telegram fetch the file itself; Bytes and Path upload via multipart.
type InputFile struct {
	URL   string
	Bytes []byte
	Path  string
	Name  string
}

func FileFromURL(url string) InputFile {
	return InputFile{URL: url}
}

func FileFromBytes(name string, bs []byte) InputFile {
	return InputFile{Bytes: bs, Name: name}
}

func FileFromPath(name, path string) InputFile {
	return InputFile{Path: path, Name: name}
}

func (f InputFile) isLocal() bool {
	return f.URL == ""
}

// ErrAPI is a non-2xx answer from the Bot API.
type ErrAPI struct {
	Method      string
	Code        int
	Description string
}

func (e ErrAPI) Error() string {
	return fmt.Sprintf("telegram: %s failed with code %d: %s", e.Method, e.Code, e.Description)
}

// ErrUnexpectedMediaKind means the API response carried none of the media
// shapes a file handle can be extracted from.
type ErrUnexpectedMediaKind struct {
	Expected persist.TgFileKind
}

func (e ErrUnexpectedMediaKind) Error() string {
	return fmt.Sprintf("telegram: response media kind does not match any known shape (requested %s)", e.Expected)
}

// SendPhoto uploads a photo to the chat and returns the sent message.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, file InputFile) (*Message, error) {
	return c.sendMedia(ctx, "sendPhoto", "photo", chatID, file)
}

// SendVideo uploads a video to the chat and returns the sent message.
func (c *Client) SendVideo(ctx context.Context, chatID int64, file InputFile) (*Message, error) {
	return c.sendMedia(ctx, "sendVideo", "video", chatID, file)
}

// SendDocument uploads a document to the chat and returns the sent message.
func (c *Client) SendDocument(ctx context.Context, chatID int64, file InputFile) (*Message, error) {
	return c.sendMedia(ctx, "sendDocument", "document", chatID, file)
}

// SendAnimation uploads a soundless mp4 (gif-equivalent) and returns the sent message.
func (c *Client) SendAnimation(ctx context.Context, chatID int64, file InputFile) (*Message, error) {
	return c.sendMedia(ctx, "sendAnimation", "animation", chatID, file)
}

// AnswerInlineQuery sends the prepared results back for an inline query.
func (c *Client) AnswerInlineQuery(ctx context.Context, queryID string, results []InlineQueryResult) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("inline_query_id", queryID)
	params.Set("results", string(resultsJSON))
	params.Set("cache_time", "0")

	var ok bool
	return c.call(ctx, "answerInlineQuery", params, &ok)
}

func (c *Client) sendMedia(ctx context.Context, method, field string, chatID int64, file InputFile) (*Message, error) {
	var msg Message
	if file.isLocal() {
		if err := c.callMultipart(ctx, method, chatID, field, file, &msg); err != nil {
			return nil, err
		}
		return &msg, nil
	}

	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set(field, file.URL)
	if err := c.call(ctx, method, params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewBufferString(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body := params.Encode()
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewBufferString(body)), nil
	}

	return c.do(req, method, result)
}

func (c *Client) callMultipart(ctx context.Context, method string, chatID int64, field string, file InputFile, result any) error {
	buf := new(bytes.Buffer)
	writer := multipart.NewWriter(buf)

	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}

	part, err := writer.CreateFormFile(field, file.Name)
	if err != nil {
		return err
	}

	if file.Path != "" {
		f, err := os.Open(file.Path)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return err
		}
	} else {
		if _, err := part.Write(file.Bytes); err != nil {
			return err
		}
	}

	if err := writer.Close(); err != nil {
		return err
	}

	payload := buf.Bytes()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	return c.do(req, method, result)
}

func (c *Client) do(req *http.Request, method string, result any) error {
	resp, err := retry.RetryRequestWithRetry(c.httpClient, req, c.retry)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Ok          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		Description string          `json:"description"`
		ErrorCode   int             `json:"error_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("telegram: decoding %s response: %w", method, err)
	}

	if !envelope.Ok {
		return ErrAPI{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
	}

	return json.Unmarshal(envelope.Result, result)
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
}
