package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"

	"github.com/kbukum/appcore/component"
	apperrors "github.com/kbukum/appcore/errors"
	"github.com/kbukum/appcore/logger"
	"github.com/kbukum/appcore/server/middleware"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	return cfg
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := New(testConfig(), logger.NewNop(), WithDebug(false))
	s.SetupMiddlewares(nil)
	return s
}

func do(h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, body))
	return rr
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8000 || cfg.Host != "0.0.0.0" {
		t.Errorf("unexpected defaults %s", cfg.Addr())
	}
	if cfg.MaxBodyBytes() != 10<<20 {
		t.Errorf("expected 10MB limit, got %d", cfg.MaxBodyBytes())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected port error")
	}

	cfg = DefaultConfig()
	cfg.ShutdownTimeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("expected negative timeout error")
	}

	cfg = DefaultConfig()
	cfg.MaxBodySize = "lots"
	if err := cfg.Validate(); err == nil {
		t.Error("expected body size error")
	}
}

func TestDefaultEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.RegisterDefaultEndpoints("svc", "1.0.0", func(context.Context) []component.Health {
		return []component.Health{{Name: "db", Status: component.StatusHealthy}}
	})
	h := s.Handler()

	for _, path := range []string{"/health", "/alive", "/ready", "/info"} {
		if rr := do(h, http.MethodGet, path, http.NoBody); rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestMiddlewareStackApplied(t *testing.T) {
	s := newTestServer(t)
	s.Engine().POST("/echo", func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, string(b))
	})
	s.Engine().GET("/boom", func(*gin.Context) { panic("boom") })
	h := s.Handler()

	rr := do(h, http.MethodPost, "/echo", strings.NewReader("hi"))
	if rr.Code != http.StatusOK || rr.Header().Get(middleware.HeaderRequestID) == "" {
		t.Errorf("expected 200 with request id, got %d %v", rr.Code, rr.Header())
	}

	big := strings.NewReader(strings.Repeat("x", 11<<20))
	if rr := do(h, http.MethodPost, "/echo", big); rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rr.Code)
	}

	if rr := do(h, http.MethodGet, "/boom", http.NoBody); rr.Code != http.StatusInternalServerError {
		t.Errorf("expected recovered 500, got %d", rr.Code)
	}
}

func TestExtraMiddlewareRunsInside(t *testing.T) {
	s := New(testConfig(), logger.NewNop())
	var sawRequestID string
	s.SetupMiddlewares(nil, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawRequestID = logger.RequestIDFromContext(r.Context())
			next.ServeHTTP(w, r)
		})
	})
	s.Engine().GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(s.Handler(), http.MethodGet, "/x", http.NoBody)
	if sawRequestID == "" {
		t.Error("extra middleware should run after request id")
	}
}

func TestGroupWithGinWrap(t *testing.T) {
	s := newTestServer(t)
	api := s.Group("/api", middleware.GinWrap(middleware.BodySizeLimit(4)))
	api.POST("/small", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	h := s.Handler()

	if rr := do(h, http.MethodPost, "/api/small", strings.NewReader("ok")); rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
	if rr := do(h, http.MethodPost, "/api/small", strings.NewReader("too large")); rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rr.Code)
	}
}

func TestStartStop(t *testing.T) {
	s := newTestServer(t)
	s.RegisterDefaultEndpoints("svc", "", nil)
	comp := NewComponent(s)

	if comp.Health(context.Background()).Status != component.StatusUnhealthy {
		t.Error("server should be unhealthy before start")
	}
	if err := comp.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if strings.HasSuffix(s.Addr(), ":0") {
		t.Fatalf("expected bound port, got %s", s.Addr())
	}

	resp, err := http.Get("http://" + s.Addr() + "/alive")
	if err != nil {
		t.Fatalf("GET /alive: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if comp.Health(context.Background()).Status != component.StatusHealthy {
		t.Error("server should be healthy while running")
	}

	if err := comp.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Running() {
		t.Error("server should not be running after Stop")
	}
}

func TestRegisterDocs(t *testing.T) {
	s := newTestServer(t)
	api := s.Group("/api/service")
	api.GET("/notes/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	api.POST("/notes", func(c *gin.Context) { c.Status(http.StatusCreated) })
	s.Engine().GET("/outside", func(c *gin.Context) {})
	s.RegisterDocs("/api/service", DocsInfo{Title: "svc", Version: "1.0.0"})
	h := s.Handler()

	rr := do(h, http.MethodGet, "/api/service/openapi.json", http.NoBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var doc struct {
		OpenAPI string                               `json:"openapi"`
		Paths   map[string]map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("invalid document: %v", err)
	}
	if _, ok := doc.Paths["/api/service/notes/{id}"]["get"]; !ok {
		t.Errorf("missing parameterized route: %v", doc.Paths)
	}
	if _, ok := doc.Paths["/api/service/notes"]["post"]; !ok {
		t.Errorf("missing POST route: %v", doc.Paths)
	}
	if _, ok := doc.Paths["/outside"]; ok {
		t.Error("routes outside the prefix should not be documented")
	}
	if _, ok := doc.Paths["/api/service/docs"]; ok {
		t.Error("docs routes should not document themselves")
	}

	loaded, err := openapi3.NewLoader().LoadFromData(rr.Body.Bytes())
	if err != nil {
		t.Fatalf("document does not load: %v", err)
	}
	if err := loaded.Validate(context.Background()); err != nil {
		t.Errorf("document does not validate: %v", err)
	}
	params := loaded.Paths.Value("/api/service/notes/{id}").Get.Parameters
	if len(params) != 1 || params[0].Value.Name != "id" || params[0].Value.In != openapi3.ParameterInPath {
		t.Errorf("expected the id path parameter, got %+v", params)
	}

	for _, path := range []string{"/api/service/docs", "/api/service/redoc"} {
		rr := do(h, http.MethodGet, path, http.NoBody)
		if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "openapi.json") {
			t.Errorf("%s: unexpected page %d", path, rr.Code)
		}
	}
}

func TestBuildOpenAPIWithoutVersion(t *testing.T) {
	s := newTestServer(t)
	s.Engine().GET("/files/*path", func(*gin.Context) {})
	s.Engine().PUT("/files/*path", func(*gin.Context) {})

	doc := buildOpenAPI(s.Engine(), "", DocsInfo{Title: "svc"})
	if doc.Info.Version == "" {
		t.Fatal("an unversioned build still needs a document version")
	}
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("document does not validate: %v", err)
	}
	item := doc.Paths.Value("/files/{path}")
	if item == nil || item.Get == nil || item.Put == nil {
		t.Fatalf("expected both methods on the catch-all route, got %+v", doc.Paths.Map())
	}
}

func TestRoutesSummaryOrder(t *testing.T) {
	s := newTestServer(t)
	s.RegisterDefaultEndpoints("svc", "", nil)
	s.Engine().DELETE("/api/a", func(*gin.Context) {})
	s.Engine().GET("/api/a", func(*gin.Context) {})

	routes := NewComponent(s).Routes()
	if len(routes) < 2 || routes[0].Path != "/api/a" || routes[0].Method != http.MethodGet {
		t.Fatalf("API routes should come first, got %+v", routes)
	}
	last := routes[len(routes)-1]
	if !strings.HasSuffix(last.Handler, "(system)") {
		t.Errorf("expected system route last, got %+v", last)
	}
}

func TestFormatHandlerName(t *testing.T) {
	tests := map[string]string{
		"github.com/acme/svc/internal/api.(*NoteAPI).List-fm":    "NoteAPI.List",
		"github.com/kbukum/appcore/server/endpoint.Health.func1": "health",
		"github.com/acme/svc/handlers.Status":                    "Status",
	}
	for in, want := range tests {
		if got := formatHandlerName(in); got != want {
			t.Errorf("formatHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	RespondWithError(c, apperrors.NotFound("note", "1"))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rr)
	RespondWithError(c, errors.New("secret detail"))
	if rr.Code != http.StatusInternalServerError || strings.Contains(rr.Body.String(), "secret detail") {
		t.Errorf("plain errors should become an opaque 500, got %d %s", rr.Code, rr.Body.String())
	}
}
