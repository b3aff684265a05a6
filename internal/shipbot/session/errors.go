package session

import (
	"net/http"

	"github.com/nurjigit18/shipledger/internal/common/apperrors"
)

var (
	// ErrSessionError is the base error for session failures.
	ErrSessionError apperrors.Error = apperrors.New("error in processing session").SetKind(apperrors.KindSessionState).SetStatusCode(http.StatusInternalServerError)

	// ErrSessionExpired is reported when input arrives for a user without a session.
	ErrSessionExpired apperrors.Error = ErrSessionError.New("session expired").SetStatusCode(http.StatusGone)

	// ErrUnexpectedInput is reported when the current step does not accept the input.
	ErrUnexpectedInput apperrors.Error = ErrSessionError.New("input not accepted at this step").SetStatusCode(http.StatusConflict)

	// ErrStaleSelection is reported for a menu option from an older prompt.
	ErrStaleSelection apperrors.Error = ErrSessionError.New("stale menu selection").SetStatusCode(http.StatusConflict)

	// ErrInvalidInput is reported when input fails validation; the step is re-prompted.
	ErrInvalidInput apperrors.Error = apperrors.New("invalid input").SetKind(apperrors.KindValidation).SetStatusCode(http.StatusBadRequest)
)
