package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/LiverGuardian/internal/features"
	"github.com/Skufu/LiverGuardian/internal/patient"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	require.NoError(t, err)
	return c
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestPredictSendsBatchOfOne(t *testing.T) {
	var got map[string][][]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(http.StatusOK, `{"prediction":[2]}`)(w, r)
	})

	stage, err := c.Predict(context.Background(), features.Encode(patient.Defaults()))
	require.NoError(t, err)
	assert.Equal(t, 2, stage)
	require.Len(t, got["data"], 1)
	assert.Len(t, got["data"][0], features.Size)
	assert.Equal(t, 50.0, got["data"][0][0])
}

func TestPredictTakesFirstElement(t *testing.T) {
	c := newTestClient(t, reply(http.StatusOK, `{"prediction":[3.0, 1]}`))
	stage, err := c.Predict(context.Background(), features.Vector{})
	require.NoError(t, err)
	assert.Equal(t, 3, stage)
}

func TestPredictErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		kind    Kind
		is      error
	}{
		{
			name:    "feature mismatch detail",
			status:  http.StatusUnprocessableEntity,
			body:    `{"detail":"Input data has wrong shape"}`,
			message: MsgFeatureMismatch,
			kind:    KindFeatureMismatch,
			is:      ErrFeatureMismatch,
		},
		{
			name:    "string detail verbatim",
			status:  http.StatusServiceUnavailable,
			body:    `{"detail":"Model is not loaded. The service is unavailable."}`,
			message: "Model is not loaded. The service is unavailable.",
			kind:    KindDetail,
			is:      ErrRejected,
		},
		{
			name:    "structured detail",
			status:  http.StatusUnprocessableEntity,
			body:    `{"detail":[{"loc":["body","data"],"msg":"field required"}]}`,
			message: `[{"loc":["body","data"],"msg":"field required"}]`,
			kind:    KindDetail,
			is:      ErrRejected,
		},
		{
			name:    "missing detail",
			status:  http.StatusInternalServerError,
			body:    `{"error":"boom"}`,
			message: MsgServiceError,
			kind:    KindDetail,
			is:      ErrRejected,
		},
		{
			name:    "non json body",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			message: MsgUnreachable,
			kind:    KindUnparsable,
			is:      ErrUnreachable,
		},
		{
			name:    "empty prediction",
			status:  http.StatusOK,
			body:    `{"prediction":[]}`,
			message: MsgUnreachable,
			kind:    KindMalformed,
			is:      ErrUnreachable,
		},
		{
			name:    "fractional stage",
			status:  http.StatusOK,
			body:    `{"prediction":[2.5]}`,
			message: MsgUnreachable,
			kind:    KindMalformed,
			is:      ErrUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, reply(tt.status, tt.body))
			_, err := c.Predict(context.Background(), features.Vector{})
			require.Error(t, err)

			var pe *Error
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.message, pe.Message)
			assert.Equal(t, tt.message, UserMessage(err))
			assert.ErrorIs(t, err, tt.is)
		})
	}
}

func TestPredictConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c, err := New("http://" + addr)
	require.NoError(t, err)

	_, err = c.Predict(context.Background(), features.Vector{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, MsgUnreachable, UserMessage(err))
}

func TestPredictTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Predict(context.Background(), features.Vector{})
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "127.0.0.1:5000", "ftp://host", "http://"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}

	c, err := New("http://127.0.0.1:5000/")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5000", c.BaseURL())
}

func TestHealth(t *testing.T) {
	ok := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		reply(http.StatusOK, `{"status":"ok"}`)(w, r)
	})
	assert.NoError(t, ok.Health(context.Background()))

	down := newTestClient(t, reply(http.StatusServiceUnavailable, `{}`))
	assert.Error(t, down.Health(context.Background()))
}

func TestUserMessageFallback(t *testing.T) {
	assert.Equal(t, MsgUnreachable, UserMessage(errors.New("anything")))
}
