// Package backend — REST-клиент дашборда: bearer-авторизация, JSON-тела и
// нормализация ошибок сервера в APIError.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout используется, если запрос не задаёт свой таймаут.
const DefaultTimeout = 10 * time.Second

// APIError — нормализованная ошибка ответа сервера или транспорта.
// Status равен 0 для ошибок транспорта.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// StatusOf возвращает HTTP-статус из цепочки ошибок или 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// MessageOf возвращает наиболее конкретное сообщение об ошибке для показа пользователю.
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Client ходит в REST API дашборда.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент с базовым адресом API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// WithHTTPClient подменяет http.Client (используется в тестах).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Request описывает один вызов API.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Token   string
	Body    any
	Timeout time.Duration
}

// Do выполняет запрос и декодирует успешный ответ в out (если out != nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	const op = "backend.Do"

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", op, &APIError{Message: transportMessage(err)})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, &APIError{Message: transportMessage(err)})
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %w", op, decodeError(resp.StatusCode, body))
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// Get — сокращение для GET-запроса.
func (c *Client) Get(ctx context.Context, token, path string, query url.Values, timeout time.Duration, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Token: token, Timeout: timeout}, out)
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(req.Body); err != nil {
			return nil, err
		}
		body = &buf
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	return httpReq, nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// decodeError выбирает сообщение в порядке: message, error, текст статуса.
func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Code = eb.Code
		switch {
		case eb.Message != "":
			apiErr.Message = eb.Message
		case eb.Error != "":
			apiErr.Message = eb.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}
