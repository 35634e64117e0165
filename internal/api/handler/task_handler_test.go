package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dark_api/internal/app/service"
	"dark_api/internal/common"
	"dark_api/internal/common/security"
	"dark_api/internal/domain/model"
	"dark_api/internal/platform/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

type stubTasks struct {
	gotPrincipal model.Principal
	gotID        string
	gotPage      model.Page
	gotAllowed   bool
	gotAnswer    string
	gotFilename  string
	gotData      []byte
	gotNames     []string

	result bool
	ref    string
	err    error
}

func (s *stubTasks) ListAvailable(ctx context.Context, p model.Principal, page model.Page) ([]model.TaskView, error) {
	s.gotPrincipal, s.gotPage = p, page
	if s.err != nil {
		return nil, s.err
	}
	return []model.TaskView{{ID: "t-1", Images: []string{}}}, nil
}

func (s *stubTasks) GetOne(ctx context.Context, p model.Principal, id string) (*model.TaskView, error) {
	s.gotPrincipal, s.gotID = p, id
	if s.err != nil {
		return nil, s.err
	}
	return &model.TaskView{ID: id, Images: []string{}}, nil
}

func (s *stubTasks) Mark(ctx context.Context, p model.Principal, id string, isAllowed bool) (bool, error) {
	s.gotPrincipal, s.gotID, s.gotAllowed = p, id, isAllowed
	return s.result, s.err
}

func (s *stubTasks) UploadImage(ctx context.Context, p model.Principal, id, filename string, data []byte) (string, error) {
	s.gotPrincipal, s.gotID, s.gotFilename, s.gotData = p, id, filename, data
	return s.ref, s.err
}

func (s *stubTasks) Add(ctx context.Context, p model.Principal, req service.CreateTaskRequest) (string, error) {
	s.gotPrincipal, s.gotNames = p, req.Names
	return "t-new", s.err
}

func (s *stubTasks) Solve(ctx context.Context, p model.Principal, id, answer string) (bool, error) {
	s.gotPrincipal, s.gotID, s.gotAnswer = p, id, answer
	return s.result, s.err
}

func (s *stubTasks) DownloadImage(ctx context.Context, ref string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader("\x89PNG\r\n\x1a\nrest")), nil
}

func newTestServer(t *testing.T, stub *stubTasks) http.Handler {
	t.Helper()
	config.AppConfig = &config.Config{JWTKey: []byte("test-secret"), JWTExp: time.Hour}
	security.InitJWT()

	r := chi.NewRouter()
	r.Use(jwtauth.Verifier(security.TokenAuth))
	r.Route("/tasks", NewTaskHandler(stub, 1<<20).RegisterRoutes)
	r.Route("/images", NewImageHandler(stub).RegisterRoutes)
	return r
}

func bearer(t *testing.T, name string, role model.Role) string {
	t.Helper()
	token, err := security.GenerateToken(&model.User{ID: "id-" + name, Username: name, Role: role})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return "Bearer " + token
}

func do(t *testing.T, h http.Handler, req *http.Request, auth string) *httptest.ResponseRecorder {
	t.Helper()
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) bool {
	t.Helper()
	var res ResultResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return res.Result
}

func TestTaskHandler_RequiresToken(t *testing.T) {
	h := newTestServer(t, &stubTasks{})
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/tasks/", nil), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestTaskHandler_ListPassesPrincipalAndPage(t *testing.T) {
	stub := &stubTasks{}
	h := newTestServer(t, stub)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/tasks/?page=3&pageSize=5", nil), bearer(t, "olga", model.RoleUser))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if stub.gotPrincipal != (model.Principal{Name: "olga", Role: model.RoleUser}) {
		t.Fatalf("principal = %+v", stub.gotPrincipal)
	}
	if stub.gotPage != (model.Page{Number: 3, Size: 5}) {
		t.Fatalf("page = %+v", stub.gotPage)
	}
	var body paginatedTasksResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || len(body.Tasks) != 1 {
		t.Fatalf("body = %+v, %v", body, err)
	}
}

func TestTaskHandler_GetMapsNotFound(t *testing.T) {
	h := newTestServer(t, &stubTasks{err: common.ErrNotFound})
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/tasks/t-9", nil), bearer(t, "olga", model.RoleUser))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestTaskHandler_AddReturnsID(t *testing.T) {
	stub := &stubTasks{}
	h := newTestServer(t, stub)

	body := strings.NewReader(`{"names":["cat","dog"]}`)
	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/tasks/", body), bearer(t, "olga", model.RoleUser))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(stub.gotNames) != 2 || !strings.Contains(rec.Body.String(), "t-new") {
		t.Fatalf("names = %v, body = %s", stub.gotNames, rec.Body.String())
	}
}

func TestTaskHandler_MarkAndSolveReturnResult(t *testing.T) {
	stub := &stubTasks{result: true}
	h := newTestServer(t, stub)

	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/tasks/t-1/mark", strings.NewReader(`{"is_allowed":true}`)), bearer(t, "mod", model.RoleModerator))
	if rec.Code != http.StatusOK || !decodeResult(t, rec) {
		t.Fatalf("mark status = %d", rec.Code)
	}
	if stub.gotID != "t-1" || !stub.gotAllowed || stub.gotPrincipal.Role != model.RoleModerator {
		t.Fatalf("mark args: id=%s allowed=%v principal=%+v", stub.gotID, stub.gotAllowed, stub.gotPrincipal)
	}

	stub.result = false
	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/tasks/t-2/solve", strings.NewReader(`{"answer":"cat"}`)), bearer(t, "sam", model.RoleUser))
	if rec.Code != http.StatusOK || decodeResult(t, rec) {
		t.Fatalf("solve status = %d", rec.Code)
	}
	if stub.gotID != "t-2" || stub.gotAnswer != "cat" {
		t.Fatalf("solve args: id=%s answer=%s", stub.gotID, stub.gotAnswer)
	}
}

func TestTaskHandler_RejectsMalformedJSON(t *testing.T) {
	h := newTestServer(t, &stubTasks{})
	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/tasks/t-1/solve", strings.NewReader(`{`)), bearer(t, "sam", model.RoleUser))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestTaskHandler_UploadImage(t *testing.T) {
	stub := &stubTasks{ref: "ref-1"}
	h := newTestServer(t, stub)

	body, ct := multipartBody(t, "file", "cat.png", []byte("\x89PNG\r\n\x1a\n"))
	req := httptest.NewRequest(http.MethodPost, "/tasks/t-1/images", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, h, req, bearer(t, "olga", model.RoleUser))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if stub.gotFilename != "cat.png" || string(stub.gotData) != "\x89PNG\r\n\x1a\n" || stub.gotID != "t-1" {
		t.Fatalf("upload args: %s %q %s", stub.gotFilename, stub.gotData, stub.gotID)
	}
	if !strings.Contains(rec.Body.String(), "ref-1") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestTaskHandler_UploadErrors(t *testing.T) {
	tests := []struct {
		name  string
		field string
		err   error
		want  int
	}{
		{"limit reached", "file", common.ErrImageLimit, http.StatusConflict},
		{"storage down", "file", common.ErrStorage, http.StatusServiceUnavailable},
		{"wrong field", "image", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &stubTasks{err: tt.err})
			body, ct := multipartBody(t, tt.field, "cat.png", []byte("\x89PNG\r\n\x1a\n"))
			req := httptest.NewRequest(http.MethodPost, "/tasks/t-1/images", body)
			req.Header.Set("Content-Type", ct)
			rec := do(t, h, req, bearer(t, "olga", model.RoleUser))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestImageHandler_Download(t *testing.T) {
	h := newTestServer(t, &stubTasks{})
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/images/abc.png", nil), bearer(t, "sam", model.RoleUser))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %s", ct)
	}
	if !strings.HasSuffix(rec.Body.String(), "rest") {
		t.Fatalf("body = %q", rec.Body.String())
	}

	h = newTestServer(t, &stubTasks{err: common.ErrNotFound})
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/images/missing.png", nil), bearer(t, "sam", model.RoleUser))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
