package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	ayumerna "github.com/Lovelumine/AYumeRNA"
	"github.com/Lovelumine/AYumeRNA/auth"
	"github.com/Lovelumine/AYumeRNA/security"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("catalog-test-secret")

type fakeAccounts struct {
	users map[string]string
}

func (f *fakeAccounts) Register(_ context.Context, req RegisterRequest) (*User, error) {
	if _, ok := f.users[req.Username]; ok {
		return nil, ErrUserExists
	}
	f.users[req.Username] = req.Password
	return &User{ID: int64(len(f.users)), Username: req.Username, Email: req.Email}, nil
}

func (f *fakeAccounts) Login(_ context.Context, req LoginRequest) (string, error) {
	password, ok := f.users[req.Username]
	if !ok {
		return "", ErrUserNotFound
	}
	if password != req.Password {
		return "", ErrBadCredentials
	}
	return "token-for-" + req.Username, nil
}

type fakeTasks struct {
	mu       sync.Mutex
	received []Task
	err      error
}

func (f *fakeTasks) Submit(_ context.Context, task Task) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.received = append(f.received, task)
	return &Receipt{TaskID: "t-1", Topic: "/topic/progress/" + task.UserID, Message: "queued"}, nil
}

func newEngine(t *testing.T, services Services) (*ayumerna.Engine, *auth.BearerJWT) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifier, err := auth.NewBearerJWT(testSecret, "")
	require.NoError(t, err)
	swagger, err := NewSwagger(Info())
	require.NoError(t, err)

	e := ayumerna.New(swagger, ayumerna.WithAuthenticator(BearerAuth, verifier))
	Mount(e, services)
	require.NoError(t, e.Init())
	return e, verifier
}

func do(e *ayumerna.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, path string, files map[string]string, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, content := range files {
		part, err := mw.CreateFormFile(name, name+".dat")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func bearer(t *testing.T, verifier *auth.BearerJWT, req *http.Request) *http.Request {
	t.Helper()
	token, err := verifier.Issue("42", "alice", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestMount_Description(t *testing.T) {
	e, _ := newEngine(t, Services{})
	desc := e.Description()
	require.NotNil(t, desc)

	assert.Equal(t, Title, desc.Info().Title)
	assert.Equal(t, Version, desc.Info().Version)
	assert.Equal(t, Description, desc.Info().Description)

	schemes := desc.Schemes()
	require.Len(t, schemes, 1)
	assert.Equal(t, BearerAuth, schemes[0].Name)
	assert.Equal(t, security.KindHTTP, schemes[0].Kind)
	assert.Equal(t, "bearer", schemes[0].Scheme)
	assert.Equal(t, "JWT", schemes[0].BearerFormat)

	assert.Equal(t, []security.Requirement{{BearerAuth}}, desc.GlobalSecurity())
	assert.Len(t, desc.Operations(), 11)

	for _, path := range []string{"/hello", "/auth/register", "/auth/login"} {
		method := http.MethodPost
		if path == "/hello" {
			method = http.MethodGet
		}
		op, ok := desc.Operation(method, path)
		require.True(t, ok, path)
		assert.NotNil(t, op.Security, path)
		assert.Empty(t, op.Security, path)
	}

	for _, kind := range []string{
		KindSample, KindTrain, KindCMBuild, KindOneHot,
		KindRfam, KindSplitOneHot, KindGenerateWeight, KindSequence,
	} {
		op, ok := desc.Operation(http.MethodPost, "/"+kind+"/process")
		require.True(t, ok, kind)
		assert.Nil(t, op.Security, kind)
		assert.Equal(t, []string{kind}, op.Tags)

		reqs, ok := desc.EffectiveSecurity(http.MethodPost, "/"+kind+"/process")
		require.True(t, ok)
		assert.Equal(t, []security.Requirement{{BearerAuth}}, reqs)
	}
}

func TestHello_IsPublic(t *testing.T) {
	e, _ := newEngine(t, Services{})

	w := do(e, httptest.NewRequest(http.MethodGet, "/hello", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hello, AYumeRNA")
}

func TestAccounts(t *testing.T) {
	accounts := &fakeAccounts{users: map[string]string{"bob": "secret"}}
	e, _ := newEngine(t, Services{Accounts: accounts})

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		return do(e, req)
	}

	w := post("/auth/register", `{"username":"alice","password":"pw","email":"alice@example.com"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = post("/auth/register", `{"username":"bob","password":"pw","email":"bob@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post("/auth/register", `{"username":"carol","password":"pw","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post("/auth/login", `{"username":"bob","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var reply struct {
		Code int           `json:"code"`
		Data LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, http.StatusOK, reply.Code)
	assert.Equal(t, "token-for-bob", reply.Data.Token)

	assert.Equal(t, http.StatusUnauthorized, post("/auth/login", `{"username":"bob","password":"nope"}`).Code)
	assert.Equal(t, http.StatusNotFound, post("/auth/login", `{"username":"dave","password":"pw"}`).Code)
}

func TestAccounts_NotConfigured(t *testing.T) {
	e, _ := newEngine(t, Services{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"username":"a","password":"b"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusNotImplemented, do(e, req).Code)
}

func TestSubmit_RequiresBearerToken(t *testing.T) {
	tasks := &fakeTasks{}
	e, _ := newEngine(t, Services{Tasks: tasks})

	req := multipartRequest(t, "/cmbuild/process", map[string]string{"stockholmFile": "# STOCKHOLM 1.0"}, nil)
	w := do(e, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
	assert.Empty(t, tasks.received)

	req = multipartRequest(t, "/cmbuild/process", map[string]string{"stockholmFile": "# STOCKHOLM 1.0"}, nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = do(e, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
}

func TestSubmit_Sample(t *testing.T) {
	tasks := &fakeTasks{}
	e, verifier := newEngine(t, Services{Tasks: tasks})

	req := multipartRequest(t, "/sample/process",
		map[string]string{"config_file": "a: 1", "ckpt_file": "ckpt", "cm_file": "cm"},
		map[string]string{"n_samples": "5"})
	w := do(e, bearer(t, verifier, req))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, tasks.received, 1)
	task := tasks.received[0]
	assert.Equal(t, KindSample, task.Kind)
	assert.Equal(t, "42", task.UserID)
	assert.Equal(t, "alice", task.Username)
	assert.Equal(t, []string{"ckpt_file", "cm_file", "config_file"}, task.FileNames())
	assert.Equal(t, SampleParams{NSamples: 5}, task.Params)
}

func TestSubmit_AppliesDefaults(t *testing.T) {
	tasks := &fakeTasks{}
	e, verifier := newEngine(t, Services{Tasks: tasks})

	req := multipartRequest(t, "/split_onehot/process", map[string]string{"h5File": "h5"}, nil)
	require.Equal(t, http.StatusOK, do(e, bearer(t, verifier, req)).Code)

	req = multipartRequest(t, "/generate_weight/process", map[string]string{"h5File": "h5"},
		map[string]string{"cpu": "8"})
	require.Equal(t, http.StatusOK, do(e, bearer(t, verifier, req)).Code)

	require.Len(t, tasks.received, 2)
	assert.Equal(t, SplitOneHotParams{TrainRatio: 0.7, RandomState: 42}, tasks.received[0].Params)
	assert.Equal(t, GenerateWeightParams{
		Mode:       "cm",
		Threshold:  0.1,
		NSamples:   10000,
		CPU:        8,
		PrintEvery: 500,
	}, tasks.received[1].Params)
}

func TestSubmit_RejectsMissingOrEmptyFiles(t *testing.T) {
	tasks := &fakeTasks{}
	e, verifier := newEngine(t, Services{Tasks: tasks})

	req := multipartRequest(t, "/onehot/process", map[string]string{"fastaFile": ">seq\nACGU"}, nil)
	assert.Equal(t, http.StatusBadRequest, do(e, bearer(t, verifier, req)).Code)

	req = multipartRequest(t, "/onehot/process", map[string]string{"fastaFile": ">seq\nACGU", "cmFile": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, do(e, bearer(t, verifier, req)).Code)

	assert.Empty(t, tasks.received)
}

func TestSubmit_TaskInProgress(t *testing.T) {
	tasks := &fakeTasks{err: ErrTaskInProgress}
	e, verifier := newEngine(t, Services{Tasks: tasks})

	req := multipartRequest(t, "/sequence/process",
		map[string]string{"templateFile": "t", "testFile": "x"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, do(e, bearer(t, verifier, req)).Code)
}
