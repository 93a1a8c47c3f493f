package router

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lovelumine/AYumeRNA/security"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginForm struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Client   string `json:"client" default:"web"`
}

type sampleForm struct {
	ID       string                `uri:"id"`
	CmFile   *multipart.FileHeader `form:"cm_file" validate:"required"`
	NSamples int                   `form:"n_samples" validate:"min=1" default:"10"`
}

type listQuery struct {
	Verbose bool   `query:"verbose"`
	Page    int    `query:"page" default:"1"`
	Sort    string `form:"sort"`
}

func serve(t *testing.T, method, path string, r *Router, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Handle(method, path, r.GetHandlers()...)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewRouter_BindsJSON(t *testing.T) {
	var got loginForm
	r := NewRouter(func(c *gin.Context, req loginForm) {
		got = req
		c.Status(http.StatusNoContent)
	})

	body := bytes.NewBufferString(`{"username":"yume","password":"secret"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	w := serve(t, http.MethodPost, "/auth/login", r, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "yume", got.Username)
	assert.Equal(t, "web", got.Client)
}

func TestNewRouter_ValidationFails(t *testing.T) {
	called := false
	r := NewRouter(func(c *gin.Context, req loginForm) {
		called = true
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"username":"yume"}`))
	req.Header.Set("Content-Type", "application/json")

	w := serve(t, http.MethodPost, "/auth/login", r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, http.StatusBadRequest, body["code"])
}

func TestNewRouter_BindsMultipart(t *testing.T) {
	var got sampleForm
	r := NewRouter(func(c *gin.Context, req sampleForm) {
		got = req
		c.Status(http.StatusAccepted)
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("cm_file", "model.cm")
	require.NoError(t, err)
	_, err = fw.Write([]byte("INFERNAL1/a"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sample/42", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := serve(t, http.MethodPost, "/sample/:id", r, req)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "42", got.ID)
	require.NotNil(t, got.CmFile)
	assert.Equal(t, "model.cm", got.CmFile.Filename)
	assert.Equal(t, 10, got.NSamples)
}

func TestNewRouter_FreshRequestPerCall(t *testing.T) {
	var seen []string
	r := NewRouter(func(c *gin.Context, req loginForm) {
		seen = append(seen, req.Client)
		c.Status(http.StatusNoContent)
	})

	for _, payload := range []string{
		`{"username":"a","password":"x","client":"cli"}`,
		`{"username":"b","password":"y"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		serve(t, http.MethodPost, "/auth/login", r, req)
	}
	assert.Equal(t, []string{"cli", "web"}, seen)
}

func TestSecurityOptions(t *testing.T) {
	inherit := NewRouterX(nil)
	assert.True(t, inherit.Inherits())

	public := NewRouterX(nil, Public())
	assert.False(t, public.Inherits())
	assert.Empty(t, public.Security)

	secured := NewRouterX(nil, Security(security.Require("bearerAuth")), Security(security.Require("apiKey")))
	assert.Equal(t, []security.Requirement{{"bearerAuth"}, {"apiKey"}}, secured.Security)
}

func TestResp_Merges(t *testing.T) {
	r := NewRouterX(nil,
		Resp(Response{"200": ResponseItem{Description: "ok"}}),
		Resp(Response{"401": ResponseItem{Description: "unauthorized"}}),
	)
	assert.Len(t, r.Response, 2)
}

func TestNewRouter_BindsQueryTags(t *testing.T) {
	var got listQuery
	r := NewRouter(func(c *gin.Context, req listQuery) {
		got = req
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/tasks?verbose=true&sort=name", nil)
	w := serve(t, http.MethodGet, "/tasks", r, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, listQuery{Verbose: true, Page: 1, Sort: "name"}, got)

	req = httptest.NewRequest(http.MethodGet, "/tasks?page=abc", nil)
	w = serve(t, http.MethodGet, "/tasks", r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
