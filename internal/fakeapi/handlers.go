package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/rx3lixir/corrector-client/internal/models"
)

const maxUploadBytes = 50 << 20

// Статусы документа и прогресс, который по ним отдает /gost-check/status
var statusProgress = map[string]int{
	"Загружен":               0,
	"Анализируется":          50,
	"Проверен":               80,
	"Идеален":                100,
	"Отправлен на доработку": 100,
}

type ctxKey struct{}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

// fieldError элемент ответа 422 в формате FastAPI
func fieldError(field, msg, typ string) map[string]any {
	return map[string]any{"loc": []any{"body", field}, "msg": msg, "type": typ}
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		login, ok := s.userFromToken(token)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, login)))
	}
}

func currentLogin(r *http.Request) string {
	login, _ := r.Context().Value(ctxKey{}).(string)
	return login
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "corrector fake api"})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid form")
		return
	}
	login := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	if login == "" || password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, []any{
			fieldError("username", "field required", "value_error.missing"),
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[login]
	if !ok || u.password != password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := s.issueToken(login, u)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []any{fieldError("body", "invalid json", "value_error.jsondecode")})
		return
	}

	var fields []any
	if req.Login == "" {
		fields = append(fields, fieldError("login", "field required", "value_error.missing"))
	}
	if len(req.Password) < 6 {
		fields = append(fields, fieldError("password", "ensure this value has at least 6 characters", "value_error.any_str.min_length"))
	}
	if len(fields) > 0 {
		writeDetail(w, http.StatusUnprocessableEntity, fields)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[req.Login]; exists {
		writeDetail(w, http.StatusBadRequest, "Пользователь с таким логином уже существует")
		return
	}

	u := s.addUser(req.Login, req.Password, models.UserProfile{
		FirstName:   req.FirstName,
		SurnameName: req.SurnameName,
		TgUsername:  req.TgUsername,
	})
	if req.PatronomicName != nil {
		u.profile.PatronomicName = *req.PatronomicName
	}

	token, err := s.issueToken(req.Login, u)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u, ok := s.users[currentLogin(r)]
	var profile models.UserProfile
	if ok {
		profile = u.profile
	}
	s.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []any{fieldError("file", "field required", "value_error.missing")})
		return
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".pdf", ".doc", ".docx":
	default:
		writeDetail(w, http.StatusBadRequest, "Недопустимый формат файла")
		return
	}
	if header.Size > maxUploadBytes {
		writeDetail(w, http.StatusRequestEntityTooLarge, "Файл слишком большой")
		return
	}

	s.mu.Lock()
	s.nextID++
	doc := &document{
		id:       s.nextID,
		owner:    currentLogin(r),
		fileName: header.Filename,
		storedAs: storagePrefix() + header.Filename,
		size:     header.Size,
		status:   "Загружен",
	}
	s.documents[doc.id] = doc
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"document_id": doc.id, "filename": doc.storedAs})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req models.StartCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocumentID.IsZero() {
		writeDetail(w, http.StatusUnprocessableEntity, []any{fieldError("document_id", "field required", "value_error.missing")})
		return
	}
	if req.CheckType != "" && !req.CheckType.Valid() {
		writeDetail(w, http.StatusUnprocessableEntity, []any{fieldError("check_type", "unexpected value", "value_error.const")})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.ownedDocument(currentLogin(r), req.DocumentID.String())
	if !ok {
		writeDetail(w, http.StatusNotFound, "Документ не найден")
		return
	}

	s.nextID++
	c := &check{id: s.nextID, document: doc, started: time.Now()}
	s.checks[c.id] = c
	doc.status = "Анализируется"
	doc.checkType = req.CheckType

	writeJSON(w, http.StatusOK, map[string]any{
		"check_id":       c.id,
		"document_id":    doc.id,
		"status":         "Анализируется",
		"score":          "0.0",
		"is_compliant":   false,
		"total_errors":   0,
		"total_warnings": 0,
		"checked_at":     c.started.Format("2006-01-02T15:04:05"),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.ownedDocument(currentLogin(r), mux.Vars(r)["document_id"])
	if !ok {
		writeDetail(w, http.StatusNotFound, "Документ не найден")
		return
	}

	progress := statusProgress[doc.status]
	remaining := 30
	if progress == 100 {
		remaining = 0
	}
	writeJSON(w, http.StatusOK, models.CheckStatus{
		DocumentID:             models.ID(itoa(doc.id)),
		Status:                 doc.status,
		Progress:               progress,
		EstimatedTimeRemaining: &remaining,
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["check_id"])
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []any{
			map[string]any{"loc": []any{"path", "check_id"}, "msg": "value is not a valid integer", "type": "type_error.integer"},
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checks[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Результат проверки не найден")
		return
	}
	if c.document.owner != currentLogin(r) {
		writeDetail(w, http.StatusForbidden, "Нет доступа к результатам проверки")
		return
	}

	c.polls++
	body := map[string]any{
		"check_id":    c.id,
		"document_id": c.document.id,
		"filename":    c.document.storedAs,
		"checked_at":  c.started.Format("2006-01-02T15:04:05"),
		"details":     map[string]any{},
	}

	if c.polls <= s.readyAfter {
		body["status"] = "Анализируется"
		body["score"] = "0.0"
		body["is_compliant"] = false
		body["errors"] = []any{}
		body["warnings"] = []any{}
		writeJSON(w, http.StatusOK, body)
		return
	}

	v := s.verdict
	status := "Проверен"
	if len(v.Errors) == 0 && len(v.Warnings) == 0 {
		status = "Идеален"
	}
	c.document.status = status

	body["status"] = status
	body["score"] = v.Score
	body["is_compliant"] = status == "Идеален"
	body["errors"] = nonNil(v.Errors)
	body["warnings"] = nonNil(v.Warnings)
	body["analysis_time_ms"] = time.Since(c.started).Milliseconds()
	body["pages_checked"] = 1 + c.document.size/3000
	if v.Recommendation != "" {
		body["recommendation"] = v.Recommendation
	}
	writeJSON(w, http.StatusOK, body)
}

// ownedDocument вызывается под s.mu
func (s *Server) ownedDocument(login, rawID string) (*document, bool) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return nil, false
	}
	doc, ok := s.documents[id]
	if !ok || doc.owner != login {
		return nil, false
	}
	return doc, true
}

func nonNil(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}
