package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("%w: zero amount", ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", fmt.Errorf("%w: deposit 0x01", ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"state", fmt.Errorf("wrap: %w", fmt.Errorf("%w: processed", ErrState)), http.StatusConflict, "STATE_ERROR"},
		{"oracle", ErrOracle, http.StatusServiceUnavailable, "ORACLE_ERROR"},
		{"collateral", ErrInsufficientCollateral, http.StatusUnprocessableEntity, "INSUFFICIENT_COLLATERAL"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := HTTPStatus(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestCode_JoinedErrorsPreferAuthorization(t *testing.T) {
	err := errors.Join(ErrValidation, ErrAuthorization)
	assert.Equal(t, "AUTHORIZATION_ERROR", Code(err))
}
