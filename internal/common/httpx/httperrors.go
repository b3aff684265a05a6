package httpx

import (
	"net/http"

	"github.com/nurjigit18/shipledger/internal/common/apperrors"
)

// Error is an HTTP error response with status code and description.
type Error struct {
	Description string `json:"description"`
	StatusCode  int    `json:"http_status_code"`
}

type errorRsp struct {
	Result int    `json:"result"`
	Error  string `json:"error"`
}

// Failure is the result code in error responses.
const Failure int = 0

// Send writes the error response. A nil writer is ignored.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	rspJson, err := json.Marshal(&errorRsp{Result: Failure, Error: e.Description})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Unable to parse error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	w.Write(rspJson)
}

func (e *Error) Error() string {
	return e.Description
}

// SendError sends an application error. A nil error is ignored.
func SendError(w http.ResponseWriter, err apperrors.Error) {
	if err == nil {
		return
	}
	statusCode := err.StatusCode()
	if statusCode == 0 {
		statusCode = statusForKind(err.Kind())
	}
	httperror := &Error{
		StatusCode:  statusCode,
		Description: err.ErrorAll(),
	}
	httperror.Send(w)
}

func ErrReqMethodNotSupported() *Error {
	return &Error{
		Description: "request method not supported",
		StatusCode:  http.StatusMethodNotAllowed,
	}
}

func ErrUnableToParseReqData() *Error {
	return &Error{
		Description: "unable to parse request data",
		StatusCode:  http.StatusBadRequest,
	}
}

// ErrApplicationError returns a 500 with an optional description.
func ErrApplicationError(err ...string) *Error {
	desc := "application error"
	if len(err) > 0 && err[0] != "" {
		desc = err[0]
	}
	return &Error{
		Description: desc,
		StatusCode:  http.StatusInternalServerError,
	}
}

func ErrUnAuthorized(str ...string) *Error {
	desc := "unauthorized"
	if len(str) > 0 && str[0] != "" {
		desc = desc + ": " + str[0]
	}
	return &Error{
		Description: desc,
		StatusCode:  http.StatusUnauthorized,
	}
}

func ErrInvalidRequest(str ...string) *Error {
	desc := "invalid request"
	if len(str) > 0 && str[0] != "" {
		desc = desc + ": " + str[0]
	}
	return &Error{
		Description: desc,
		StatusCode:  http.StatusBadRequest,
	}
}

func ErrNotFound(str ...string) *Error {
	desc := "not found"
	if len(str) > 0 && str[0] != "" {
		desc = desc + ": " + str[0]
	}
	return &Error{
		Description: desc,
		StatusCode:  http.StatusNotFound,
	}
}

func ErrRequestTimeout() *Error {
	return &Error{
		Description: "request timed out",
		StatusCode:  http.StatusGatewayTimeout,
	}
}
