package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbortWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)

	AbortWithError(ctx, http.StatusBadRequest, CodeInvalidRequest, errors.New("bad <prefix>"))

	assert.True(t, ctx.IsAborted())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, ctx.Errors, 1)
	assert.EqualError(t, ctx.Errors[0].Err, "bad <prefix>")

	// PureJSON leaves html characters unescaped
	assert.Contains(t, w.Body.String(), "bad <prefix>")

	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeInvalidRequest, body.Code)
	assert.Equal(t, "bad <prefix>", body.Message)
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: CodeInvalidRequest, Message: "missing name"}
	assert.Equal(t, CodeInvalidRequest+": missing name", err.Error())
}
