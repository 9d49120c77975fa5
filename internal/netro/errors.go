package netro

import (
	"errors"
	"fmt"
)

// NPA application error codes.
const (
	CodeInvalidKey     = 1
	CodeExceedLimit    = 3
	CodeInvalidDevice  = 4
	CodeInternalError  = 5
	CodeParameterError = 6
)

// APIError is an application-level error reported inside a well-formed NPA
// envelope (status "ERROR").
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("netro API error #%d: %s", e.Code, e.Message)
}

// MalformedResponseError indicates the response body did not match the NPA
// envelope contract at all. This is a protocol mismatch, kept distinct from
// APIError so callers never confuse it with an application error.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed netro response: %s", e.Reason)
}

func errCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

func IsInvalidKey(err error) bool    { return errCode(err) == CodeInvalidKey }
func IsExceedLimit(err error) bool   { return errCode(err) == CodeExceedLimit }
func IsInvalidDevice(err error) bool { return errCode(err) == CodeInvalidDevice }
func IsParameterError(err error) bool {
	return errCode(err) == CodeParameterError
}
