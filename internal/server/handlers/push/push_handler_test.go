package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/foldernotify/internal/server/gate"
	"github.com/openmined/foldernotify/internal/server/handlers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGate struct {
	mock.Mock
}

func (m *mockGate) HandlePayload(ctx context.Context, body []byte) (*gate.Result, error) {
	args := m.Called(ctx, body)
	res, _ := args.Get(0).(*gate.Result)
	return res, args.Error(1)
}

func serve(h *PushHandler, target string, body []byte) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	h.Push(c)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.APIError {
	t.Helper()
	var apiErr api.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	return apiErr
}

func TestPush_Notified(t *testing.T) {
	g := &mockGate{}
	body := []byte(`{"name":"test/a/b.csv"}`)
	g.On("HandlePayload", mock.Anything, body).
		Return(&gate.Result{Notified: true, Outcome: gate.OutcomeNotified, FolderKey: "test/a", Delivered: true}, nil)

	w := serve(New(g, &Config{}), "/", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"notified":true,"outcome":"notified","folderKey":"test/a"}`, w.Body.String())
	g.AssertExpectations(t)
}

func TestPush_FilteredIsAcked(t *testing.T) {
	g := &mockGate{}
	g.On("HandlePayload", mock.Anything, mock.Anything).Return(&gate.Result{Outcome: gate.OutcomeFiltered}, nil)

	w := serve(New(g, &Config{}), "/", []byte(`{"name":"other/x"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"notified":false,"outcome":"filtered","folderKey":""}`, w.Body.String())
}

func TestPush_ValidationError(t *testing.T) {
	g := &mockGate{}
	g.On("HandlePayload", mock.Anything, mock.Anything).Return(nil, &gate.ValidationError{Field: "name", Message: "object path is required"})

	w := serve(New(g, &Config{}), "/", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.CodeInvalidRequest, decodeError(t, w).Code)

	// transports that retry every non-2xx get an ack instead
	w = serve(New(g, &Config{AckMalformed: true}), "/", []byte(`{}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"malformed"`)
}

func TestPush_StoreErrorIsRetryable(t *testing.T) {
	g := &mockGate{}
	g.On("HandlePayload", mock.Anything, mock.Anything).Return(nil, &gate.TransientStoreError{FolderKey: "test/a", Err: errors.New("database is locked")})

	w := serve(New(g, &Config{}), "/", []byte(`{"name":"test/a/b"}`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, api.CodeStoreUnavailable, decodeError(t, w).Code)
}

func TestPush_VerificationToken(t *testing.T) {
	g := &mockGate{}
	g.On("HandlePayload", mock.Anything, mock.Anything).Return(&gate.Result{Outcome: gate.OutcomeFiltered}, nil)
	h := New(g, &Config{VerificationToken: "s3cret-token"})

	w := serve(h, "/", []byte(`{}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, api.CodeUnauthorized, decodeError(t, w).Code)

	w = serve(h, "/?token=wrong", []byte(`{}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(h, "/?token=s3cret-token", []byte(`{}`))
	assert.Equal(t, http.StatusOK, w.Code)
	g.AssertNumberOfCalls(t, "HandlePayload", 1)
}

func TestPush_BodyTooLarge(t *testing.T) {
	g := &mockGate{}
	h := New(g, &Config{MaxBodySize: 16})

	w := serve(h, "/", []byte(strings.Repeat("x", 64)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, api.CodeBodyTooLarge, decodeError(t, w).Code)
	g.AssertNotCalled(t, "HandlePayload", mock.Anything, mock.Anything)
}

func TestPush_AppliesTimeout(t *testing.T) {
	g := &mockGate{}
	g.On("HandlePayload", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 5*time.Second
	}), mock.Anything).Return(&gate.Result{Outcome: gate.OutcomeFiltered}, nil)

	w := serve(New(g, &Config{Timeout: 5 * time.Second}), "/", []byte(`{}`))
	assert.Equal(t, http.StatusOK, w.Code)
	g.AssertExpectations(t)
}
