package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if c.API.BaseURL != "http://localhost:8020" {
		t.Errorf("base_url: получили %s", c.API.BaseURL)
	}
	if c.Poll.Interval != 3*time.Second {
		t.Errorf("интервал опроса по умолчанию должен быть 3s, получили %s", c.Poll.Interval)
	}
	if c.Poll.BackoffMultiplier != 1.0 {
		t.Errorf("множитель по умолчанию должен быть 1, получили %v", c.Poll.BackoffMultiplier)
	}
	if got := c.Upload.MaxUploadBytes(); got != 50*1024*1024 {
		t.Errorf("MaxUploadBytes: получили %d", got)
	}
	if want := filepath.Join(home, ".corrector", "session.json"); c.Store.Path != want {
		t.Errorf("путь хранилища: ожидали %s, получили %s", want, c.Store.Path)
	}
	if c.Store.Backend != "file" {
		t.Errorf("backend: получили %s", c.Store.Backend)
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("API_BASE_URL", "https://corrector.example.com")
	t.Setenv("MAX_FILE_SIZE_MB", "10")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("TOKEN_STORE", "memory")
	t.Setenv("CORRECTOR_ENV", "prod")

	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if c.API.BaseURL != "https://corrector.example.com" {
		t.Errorf("base_url не переопределен: %s", c.API.BaseURL)
	}
	if c.Upload.MaxFileSizeMB != 10 {
		t.Errorf("max_file_size_mb: получили %d", c.Upload.MaxFileSizeMB)
	}
	if c.Poll.Interval != 500*time.Millisecond {
		t.Errorf("interval: получили %s", c.Poll.Interval)
	}
	if c.Store.Backend != "memory" || !c.IsProduction() {
		t.Errorf("backend/env не переопределены: %+v %+v", c.Store, c.Service)
	}
}

func TestNew_ConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "corrector.yaml")
	content := `
api_params:
  base_url: http://api.local:9000
poll_params:
  interval: 2s
  max_attempts: 5
  backoff_multiplier: 2
  max_interval: 10s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.API.BaseURL != "http://api.local:9000" || c.Poll.MaxAttempts != 5 || c.Poll.BackoffMultiplier != 2 {
		t.Errorf("значения из файла не применились: %+v %+v", c.API, c.Poll)
	}
}

func TestNew_MissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := New(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("ожидали ошибку для несуществующего файла, указанного явно")
	}
}

func TestNew_ValidationFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TOKEN_STORE", "s3")

	_, err := New("")
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("ожидали ошибку валидации, получили %v", err)
	}
}

func TestRedisURL(t *testing.T) {
	cases := []struct {
		url, password, want string
	}{
		{"localhost:6379", "", "redis://localhost:6379"},
		{"redis://cache:6379/1", "", "redis://cache:6379/1"},
		{"localhost:6379", "secret", "redis://:secret@localhost:6379"},
		{"rediss://cache:6380", "secret", "rediss://:secret@cache:6380"},
	}

	for _, tc := range cases {
		s := StoreParams{RedisURLValue: tc.url, RedisPassword: tc.password}
		if got := s.RedisURL(); got != tc.want {
			t.Errorf("RedisURL(%q, %q) = %q, ожидали %q", tc.url, tc.password, got, tc.want)
		}
	}
}
