package feishu

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		code       int
		wantKind   Kind
		wantErr    error
	}{
		{"unauthorized", http.StatusUnauthorized, 0, KindAuthUnavailable, ErrAuthUnavailable},
		{"feishu auth code", http.StatusOK, 99991663, KindAuthUnavailable, ErrAuthUnavailable},
		{"not found", http.StatusNotFound, 0, KindRemoteGone, ErrRemoteGone},
		{"rate limited", http.StatusTooManyRequests, 0, KindRemoteTransient, ErrRemoteTransient},
		{"server error", http.StatusInternalServerError, 0, KindRemoteTransient, ErrRemoteTransient},
		{"bad request", http.StatusBadRequest, 0, KindRemotePermanent, ErrRemotePermanent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify(tc.statusCode, tc.code, "boom")
			if assert.NotNil(t, err) {
				assert.Equal(t, tc.wantKind, err.Kind)
				assert.True(t, errors.Is(err, tc.wantErr))
			}
		})
	}
}

func TestClassifySuccessReturnsNil(t *testing.T) {
	assert.Nil(t, classify(http.StatusOK, 0, ""))
}
