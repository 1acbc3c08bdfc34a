package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapError_KeepsBothIdentities(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := WrapError(ErrConnection, cause)

	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, cause)

	ce, ok := AsCustomError(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeConnection, ce.Code)
}

func TestBuildErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		debug      bool
		wantStatus int
		wantCode   string
	}{
		{"unparsable", fmt.Errorf("extract: %w", ErrUnparsableResponse), false, http.StatusBadGateway, ErrCodeUnparsableResponse},
		{"missing mandatory", ErrMissingMandatoryIngredient, false, http.StatusConflict, ErrCodeMissingMandatory},
		{"empty mandatory", ErrEmptyMandatoryList, true, http.StatusUnprocessableEntity, ErrCodeEmptyMandatoryList},
		{"plain error", errors.New("boom"), false, http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := BuildErrorResponse(tt.err, tt.debug)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.debug {
				assert.NotEmpty(t, resp.Details)
			} else {
				assert.Empty(t, resp.Details)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "sk-o...cdef", MaskSecret("sk-or-v1-0123456789abcdef"))
}
