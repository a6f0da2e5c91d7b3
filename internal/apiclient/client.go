package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rx3lixir/corrector-client/internal/logger"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "corrector-client/1.0"
	maxResponseBytes = 10 << 20
	requestIDHeader  = "X-Request-ID"
)

// TokenSource источник bearer-токена. tokenstore.Store ему удовлетворяет
type TokenSource interface {
	Token() (string, bool)
}

// UnauthorizedHandler вызывается на каждый ответ 401 от защищенного эндпоинта.
// Клиент сам ничего не чистит и никуда не перенаправляет: решение принимает
// наблюдатель сессии верхнего уровня
type UnauthorizedHandler func(path string)

// Client единый конвейер запросов к API корректора
type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	tokens         TokenSource
	limiter        *rate.Limiter
	onUnauthorized UnauthorizedHandler
	log            logger.Logger
	userAgent      string
}

// Request описание запроса. Заполняется одно из JSON, Form, File
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	JSON   any
	Form   url.Values
	File   *FilePart
}

// FilePart файл для multipart/form-data
type FilePart struct {
	FieldName string
	FileName  string
	Content   io.Reader
	// Fields дополнительные текстовые поля формы
	Fields map[string]string
}

// New создает клиент для baseURL. tokens может быть nil для анонимного клиента
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	// Cookie jar: запросы идут "с учетными данными", как withCredentials в браузере
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout, Jar: jar},
		tokens:     tokens,
		log:        logger.Nop(),
		userAgent:  defaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL адрес API
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do выполняет запрос и декодирует JSON-ответ в out (если out не nil).
// Ошибки не проглатываются: вызывающий код сам решает, как их показать
func (c *Client) Do(ctx context.Context, r *Request, out any) error {
	// Лимитер до сборки запроса: multipart-тело уже запускает писателя в pipe
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return err
	}

	reqID := req.Header.Get(requestIDHeader)
	log := c.log.With("request_id", reqID)
	log.Debug("→ "+req.Method+" "+r.Path, "body", describeBody(r))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("request failed", "method", req.Method, "path", r.Path, "error", err)
		return &NetworkError{Op: req.Method + " " + r.Path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &NetworkError{Op: req.Method + " " + r.Path, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	log.Debug("← "+resp.Status+" "+r.Path, "duration", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", req.Method, r.Path, err)
		}
		return nil
	}

	return c.handleError(log, resp.StatusCode, r.Path, body)
}

// handleError переводит неуспешный ответ в типизированную ошибку
func (c *Client) handleError(log logger.Logger, status int, path string, body []byte) error {
	detail := DecodeErrorDetail(body)
	isLogin := path == LoginPath

	switch {
	case status == http.StatusUnauthorized || (isLogin && status == http.StatusBadRequest):
		log.Warn("unauthorized response", "path", path, "status", status)
		// Для эндпоинта логина 401 означает неверный пароль, а не протухшую сессию
		if !isLogin && c.onUnauthorized != nil {
			c.onUnauthorized(path)
		}
		return &AuthError{Status: status, Detail: detail}

	case status == http.StatusUnprocessableEntity:
		log.Warn("validation error", "path", path, "detail", string(detail.Raw))
		fields := detail.Fields
		if detail.Kind == DetailMessage {
			fields = []FieldError{{Message: detail.Message}}
		}
		return &ValidationError{Fields: fields}

	case status == http.StatusNotFound:
		log.Debug("not found", "path", path)
		return &NotFoundError{Path: path, Detail: detail}

	default:
		log.Error("request error", "path", path, "status", status, "message", detail.Message)
		return &HTTPError{Status: status, Path: path, Detail: detail}
	}
}

// newRequest собирает http.Request: токен, кодировка тела, служебные заголовки
func (c *Client) newRequest(ctx context.Context, r *Request) (*http.Request, error) {
	if r.Method == "" {
		r.Method = http.MethodGet
	}

	u := c.baseURL.JoinPath(r.Path)
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	header := http.Header{}
	for k, vs := range r.Header {
		for _, v := range vs {
			header.Add(k, v)
		}
	}

	var body io.Reader
	switch {
	case r.Path == LoginPath:
		// Логин всегда form-urlencoded, что бы ни было выставлено заранее
		form := r.Form
		if form == nil {
			form = url.Values{}
		}
		body = strings.NewReader(form.Encode())
		header.Set("Content-Type", "application/x-www-form-urlencoded")

	case r.File != nil:
		// Заранее выставленный Content-Type убираем: boundary знает только writer
		header.Del("Content-Type")
		reader, contentType := multipartBody(r.File)
		body = reader
		header.Set("Content-Type", contentType)

	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		header.Set("Content-Type", "application/x-www-form-urlencoded")

	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "application/json")
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		if rc, ok := body.(io.Closer); ok {
			rc.Close()
		}
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header = header

	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get(requestIDHeader) == "" {
		req.Header.Set(requestIDHeader, uuid.NewString())
	}

	return req, nil
}

// multipartBody стримит файл через pipe, не держа его целиком в памяти
func multipartBody(f *FilePart) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(mw, f)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

func writeMultipart(mw *multipart.Writer, f *FilePart) error {
	for name, value := range f.Fields {
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}

	field := f.FieldName
	if field == "" {
		field = "file"
	}
	part, err := mw.CreateFormFile(field, f.FileName)
	if err != nil {
		return err
	}
	if f.Content == nil {
		return errors.New("file content is nil")
	}
	_, err = io.Copy(part, f.Content)
	return err
}

// describeBody краткое описание тела для лога. Пароли и содержимое файлов не пишем
func describeBody(r *Request) string {
	switch {
	case r.File != nil:
		return "[multipart " + r.File.FileName + "]"
	case r.Path == LoginPath:
		return "[credentials]"
	case r.Form != nil:
		return "[form]"
	case r.JSON != nil:
		return "[json]"
	default:
		return ""
	}
}
