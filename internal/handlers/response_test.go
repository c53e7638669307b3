package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/gw-users/internal/logger"
	"github.com/sbilibin2017/gw-users/internal/middlewares"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInternalErrorLogCarriesRequestID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	core, logs := observer.New(zapcore.ErrorLevel)
	originalLog := logger.Log
	logger.Log = zap.New(core).Sugar()
	defer func() { logger.Log = originalLog }()

	svc := NewMockUserLister(ctrl)
	svc.EXPECT().List(gomock.Any()).Return(nil, errors.New("db down"))

	handler := middlewares.LoggingMiddleware(zap.NewNop().Sugar())(NewListUsersHandler(svc))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	entries := logs.FilterMessage("internal server error").All()
	require.Len(t, entries, 1)
	reqID := rr.Header().Get("X-Request-ID")
	assert.NotEmpty(t, reqID)
	assert.Equal(t, reqID, entries[0].ContextMap()["request_id"])
	assert.Equal(t, "db down", entries[0].ContextMap()["error"])
}
