// Package errs defines the failure taxonomy shared by the ingress and lending-core services.
//
// Every failure is a sentinel wrapped with context:
//
//	return fmt.Errorf("%w: deposit %s already released", errs.ErrState, handle)
//
// Callers test with errors.Is; the HTTP layer maps sentinels to status codes with HTTPStatus.
package errs

import (
	"errors"
	"net/http"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrState                  = errors.New("state error")
	ErrConfig                 = errors.New("config error")
	ErrOracle                 = errors.New("oracle error")
	ErrAuthorization          = errors.New("authorization error")
	ErrDecryption             = errors.New("decryption error")
	ErrFraming                = errors.New("framing error")
	ErrInsufficientCollateral = errors.New("insufficient collateral")
)

type classification struct {
	sentinel error
	status   int
	code     string
}

// ordered: the first matching sentinel wins for errors that wrap several
var classifications = []classification{
	{ErrAuthorization, http.StatusForbidden, "AUTHORIZATION_ERROR"},
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{ErrState, http.StatusConflict, "STATE_ERROR"},
	{ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{ErrFraming, http.StatusBadRequest, "FRAMING_ERROR"},
	{ErrDecryption, http.StatusUnprocessableEntity, "DECRYPTION_ERROR"},
	{ErrConfig, http.StatusUnprocessableEntity, "CONFIG_ERROR"},
	{ErrOracle, http.StatusServiceUnavailable, "ORACLE_ERROR"},
	{ErrInsufficientCollateral, http.StatusUnprocessableEntity, "INSUFFICIENT_COLLATERAL"},
}

// HTTPStatus returns the HTTP status and stable error code for err.
// Unclassified errors map to 500 / INTERNAL_ERROR.
func HTTPStatus(err error) (int, string) {
	for _, c := range classifications {
		if errors.Is(err, c.sentinel) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// Code returns only the stable error code for err, used as a metrics label.
func Code(err error) string {
	_, code := HTTPStatus(err)
	return code
}
