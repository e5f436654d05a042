package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funcgate/funcgate-core/pkg/api"
	"github.com/funcgate/funcgate-core/pkg/config"
	"github.com/funcgate/funcgate-core/pkg/handler"
	"github.com/funcgate/funcgate-core/pkg/loader"
	"github.com/funcgate/funcgate-core/pkg/middleware/auth"
	"github.com/funcgate/funcgate-core/pkg/middleware/logger"
	"github.com/funcgate/funcgate-core/pkg/middleware/metrics"
	"github.com/funcgate/funcgate-core/pkg/registry"
	"github.com/funcgate/funcgate-core/pkg/transport/httpx"
)

const userUnit = `
[[function]]
name = "get_info"
handler = "test.echo"
methods = ["GET", "POST"]

  [[function.param]]
  name = "user_id"
  type = "integer"
  required = true

  [[function.param]]
  name = "active"
  type = "boolean"
  default = true

[[function]]
name = "fail"
handler = "test.fail"
methods = ["GET"]

[[function]]
name = "refuse"
handler = "test.refuse"
methods = ["GET"]

[[function]]
name = "boom"
handler = "test.boom"
methods = ["GET"]

[[function]]
name = "wait"
handler = "test.wait"
methods = ["GET"]
async = true
`

type testEnv struct {
	h   http.Handler
	ld  *loader.Loader
	reg *registry.Registry
	dir string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.toml"), []byte(userUnit), 0o600))

	cfg := config.NewStaticHolder(config.NewSnapshot(func(s *config.Snapshot) {
		s.ModulesDir = dir
		s.BusinessTokens = []string{"token"}
		s.AdminTokens = []string{"admin"}
	}))

	cat := handler.NewCatalog()
	cat.Register("test.echo", func(_ context.Context, args map[string]any) (any, error) {
		return args, nil
	})
	cat.Register("test.fail", func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("backend exploded")
	})
	cat.Register("test.refuse", func(context.Context, map[string]any) (any, error) {
		return nil, api.NewError(api.KindInvalidParameter, "handler-level refusal")
	})
	cat.Register("test.boom", func(context.Context, map[string]any) (any, error) {
		panic("unexpected")
	})
	cat.Register("test.wait", func(_ context.Context, args map[string]any) (any, error) {
		return "done", nil
	}, handler.WithAsync())

	reg := registry.New()
	ld := loader.New(cfg, reg, cat, logger.Nop())
	ld.LoadAll()

	d := NewDispatcher(cfg, reg, auth.NewGate(cfg), ld, logger.Nop(), NewScheduler(4))
	h := BuildRouter(d, BuildDeps{
		Cfg:     cfg,
		Metrics: metrics.ProvideMetrics(),
		Router:  httpx.NewChi(),
	})
	return &testEnv{h: h, ld: ld, reg: reg, dir: dir}
}

func (e *testEnv) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	return e.do(t, req)
}

func (e *testEnv) post(t *testing.T, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req)
}

func (e *testEnv) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestStatusEndpoint(t *testing.T) {
	e := newEnv(t)
	code, out := e.get(t, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["success"])

	data := out["data"].(map[string]any)
	eps := data["endpoints"].([]any)
	assert.Contains(t, eps, "GET /user/get_info")
	assert.Contains(t, eps, "POST /user/get_info")
	assert.Contains(t, eps, "GET /user/wait")
}

func TestAuthRunsBeforeRouting(t *testing.T) {
	e := newEnv(t)

	code, out := e.get(t, "/user/get_info?user_id=1")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "MISSING_TOKEN", out["code"])
	assert.Equal(t, "/user/get_info", out["endpoint"])

	code, out = e.get(t, "/user/get_info?token=wrong&user_id=1")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "INVALID_TOKEN", out["code"])

	// Routing failures stay hidden until auth resolves.
	code, out = e.get(t, "/ghost/fn")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "MISSING_TOKEN", out["code"])
}

func TestNotFound(t *testing.T) {
	e := newEnv(t)

	code, out := e.get(t, "/ghost/fn?token=token")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", out["code"])
	assert.Equal(t, []any{"user"}, out["available_modules"])

	code, out = e.get(t, "/user/ghost?token=token")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", out["code"])
	assert.Contains(t, out["available_functions"], "get_info")
}

func TestMethodNotAllowed(t *testing.T) {
	e := newEnv(t)
	code, out := e.post(t, "/user/fail", `{"token":"token","body":{}}`)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", out["code"])
	assert.Equal(t, []any{"GET"}, out["allowed_methods"])
}

func TestGetBindingAndInvocation(t *testing.T) {
	e := newEnv(t)
	code, out := e.get(t, "/user/get_info?token=token&user_id=123&active=false")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "/user/get_info", out["endpoint"])

	data := out["data"].(map[string]any)
	assert.Equal(t, float64(123), data["user_id"])
	assert.Equal(t, false, data["active"])
}

func TestGetInvalidParameterType(t *testing.T) {
	e := newEnv(t)
	code, out := e.get(t, "/user/get_info?token=token&user_id=abc")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_PARAMETER_TYPE", out["code"])
	assert.Equal(t, "user_id", out["parameter"])
}

func TestPostMissingParameter(t *testing.T) {
	e := newEnv(t)
	code, out := e.post(t, "/user/get_info", `{"token":"token","body":{}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "MISSING_PARAMETER", out["code"])
	assert.Contains(t, out["error"], "user_id")
	assert.Equal(t, []any{"user_id"}, out["required_parameters"])
	assert.Equal(t, []any{"active"}, out["optional_parameters"])
}

func TestPostBindingWithDefaults(t *testing.T) {
	e := newEnv(t)
	code, out := e.post(t, "/user/get_info", `{"token":"token","body":{"user_id":42}}`)
	assert.Equal(t, http.StatusOK, code)
	data := out["data"].(map[string]any)
	assert.Equal(t, float64(42), data["user_id"])
	assert.Equal(t, true, data["active"], "default fills the absent optional")
}

func TestPostMalformedBodyIsMissingToken(t *testing.T) {
	e := newEnv(t)
	code, out := e.post(t, "/user/get_info", `{not json`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "MISSING_TOKEN", out["code"])
}

func TestHandlerErrorBecomesInternal(t *testing.T) {
	e := newEnv(t)
	code, out := e.get(t, "/user/fail?token=token")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "INTERNAL_ERROR", out["code"])
	assert.Equal(t, "backend exploded", out["error"])
}

func TestHandlerAPIErrorPassesThrough(t *testing.T) {
	e := newEnv(t)
	code, out := e.get(t, "/user/refuse?token=token")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_PARAMETER", out["code"])
	assert.Equal(t, "handler-level refusal", out["error"])
}

func TestHandlerPanicIsCaught(t *testing.T) {
	e := newEnv(t)
	code, out := e.get(t, "/user/boom?token=token")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "INTERNAL_ERROR", out["code"])
	assert.Contains(t, out["error"], "panic")
}

func TestAsyncHandlerAwaited(t *testing.T) {
	e := newEnv(t)
	code, out := e.get(t, "/user/wait?token=token")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "done", out["data"])
}

func TestAdminRoutesRejectBusinessTokens(t *testing.T) {
	e := newEnv(t)

	code, out := e.get(t, "/api/reload?token=token")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "INVALID_ADMIN_TOKEN", out["code"])

	code, out = e.get(t, "/api/reload")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "MISSING_ADMIN_TOKEN", out["code"])

	code, out = e.post(t, "/api/reload-config", `{"token":"token"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "INVALID_ADMIN_TOKEN", out["code"])
}

func TestAdminReloadReportsOutcomes(t *testing.T) {
	e := newEnv(t)

	// Break one module, add another; previously published endpoints of the
	// broken module stay live.
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "user.toml"), []byte(`[[function]`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "extra.toml"), []byte(`
[[function]]
name = "echo"
handler = "test.echo"
methods = ["GET"]
`), 0o600))

	code, out := e.get(t, "/api/reload?token=admin")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["success"])

	data := out["data"].(map[string]any)
	report := data["report"].(map[string]any)
	outcomes := map[string]string{}
	for _, raw := range report["modules"].([]any) {
		m := raw.(map[string]any)
		outcomes[m["module"].(string)] = m["outcome"].(string)
	}
	assert.Equal(t, "errored", outcomes["user"])
	assert.Equal(t, "reloaded", outcomes["extra"])

	// The broken module's old generation is still dispatchable.
	code, _ = e.get(t, "/user/get_info?token=token&user_id=1")
	assert.Equal(t, http.StatusOK, code)
	code, _ = e.get(t, "/extra/echo?token=token")
	assert.Equal(t, http.StatusOK, code)
}

func TestAdminReloadConfig(t *testing.T) {
	e := newEnv(t)
	code, out := e.post(t, "/api/reload-config", `{"token":"admin"}`)
	assert.Equal(t, http.StatusOK, code)
	data := out["data"].(map[string]any)
	cfg := data["config"].(map[string]any)
	assert.Equal(t, float64(8000), cfg["port"])
}
