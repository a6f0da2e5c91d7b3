package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/rx3lixir/corrector-client/internal/models"
)

// Пути API корректора
const (
	LoginPath       = "/token"
	RegisterPath    = "/register"
	MePath          = "/me"
	UploadPath      = "/upload"
	CheckStartPath  = "/gost-check/start"
	checkResultPath = "/gost-check/result/"
	checkStatusPath = "/gost-check/status/"
)

// CheckResultPath путь результата проверки
func CheckResultPath(checkID models.ID) string {
	return checkResultPath + url.PathEscape(checkID.String())
}

// CheckStatusPath путь статуса проверки документа
func CheckStatusPath(documentID models.ID) string {
	return checkStatusPath + url.PathEscape(documentID.String())
}

// Login отправляет учетные данные формой username/password
func (c *Client) Login(ctx context.Context, username, password string) (*models.TokenResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var res models.TokenResponse
	if err := c.Do(ctx, &Request{Method: http.MethodPost, Path: LoginPath, Form: form}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error) {
	var res models.TokenResponse
	if err := c.Do(ctx, &Request{Method: http.MethodPost, Path: RegisterPath, JSON: req}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Me возвращает профиль текущего пользователя
func (c *Client) Me(ctx context.Context) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := c.Do(ctx, &Request{Method: http.MethodGet, Path: MePath}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Upload загружает файл multipart-формой в поле "file"
func (c *Client) Upload(ctx context.Context, fileName string, content io.Reader) (*models.UploadResponse, error) {
	var res models.UploadResponse
	req := &Request{
		Method: http.MethodPost,
		Path:   UploadPath,
		File:   &FilePart{FieldName: "file", FileName: fileName, Content: content},
	}
	if err := c.Do(ctx, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) StartCheck(ctx context.Context, req models.StartCheckRequest) (*models.StartCheckResponse, error) {
	var res models.StartCheckResponse
	if err := c.Do(ctx, &Request{Method: http.MethodPost, Path: CheckStartPath, JSON: req}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CheckResult возвращает сырой результат проверки; нормализует его пакет checkresult
func (c *Client) CheckResult(ctx context.Context, checkID models.ID) (*models.RawCheckResult, error) {
	var res models.RawCheckResult
	if err := c.Do(ctx, &Request{Method: http.MethodGet, Path: CheckResultPath(checkID)}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CheckStatus(ctx context.Context, documentID models.ID) (*models.CheckStatus, error) {
	var res models.CheckStatus
	if err := c.Do(ctx, &Request{Method: http.MethodGet, Path: CheckStatusPath(documentID)}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Ping проверяет, что сервер отвечает. Любой HTTP-ответ считается успехом
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+"/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: "ping", Err: err}
	}
	resp.Body.Close()
	return nil
}
