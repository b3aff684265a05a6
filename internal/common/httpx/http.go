// Package httpx provides request/response helpers for the admin HTTP API:
// JSON request decoding, a handler wrapper that maps application errors to
// status codes, and a response writer that remembers whether it was written.
package httpx

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/nurjigit18/shipledger/internal/common/apperrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GetRequestData decodes the JSON request body into data. Only POST, PUT and
// PATCH carry a body.
func GetRequestData(r *http.Request, data any) error {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return ErrUnableToParseReqData()
	}
	return nil
}

// Response is what a RequestHandler returns on success.
type Response struct {
	StatusCode int
	Response   any
}

// RequestHandler handles a request and returns either a response or an error.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp adapts a RequestHandler to http.HandlerFunc. Errors of type *Error are
// sent as is; apperrors.Error values are mapped through their status code, falling
// back to a status derived from their kind.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			if httperror, ok := err.(*Error); ok {
				httperror.Send(w)
			} else if appErr, ok := err.(apperrors.Error); ok {
				SendError(w, appErr)
			} else {
				ErrApplicationError(err.Error()).Send(w)
			}
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response)
	})
}

// statusForKind is used when an application error does not set its own status.
func statusForKind(k apperrors.Kind) int {
	switch k {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindSessionState:
		return http.StatusConflict
	case apperrors.KindLedger, apperrors.KindAllocation, apperrors.KindCommitRow:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
