package ledger

import (
	"net/http"

	"github.com/nurjigit18/shipledger/internal/common/apperrors"
)

var (
	// ErrLedger is the base error for ledger gateway failures.
	ErrLedger apperrors.Error = apperrors.New("ledger error").SetKind(apperrors.KindLedger).SetStatusCode(http.StatusBadGateway)

	// ErrSheetNotFound is returned when the named sheet does not exist.
	ErrSheetNotFound apperrors.Error = ErrLedger.New("sheet not found").SetStatusCode(http.StatusNotFound)

	// ErrRowOutOfRange is returned when a cell update addresses a row past the end of the sheet.
	ErrRowOutOfRange apperrors.Error = ErrLedger.New("row out of range").SetKind(apperrors.KindValidation).SetStatusCode(http.StatusNotFound)

	// ErrColumnNotFound is returned when a header lookup fails.
	ErrColumnNotFound apperrors.Error = ErrLedger.New("column not found").SetStatusCode(http.StatusNotFound)

	// ErrInvalidRecord is returned when a record fails validation before append.
	ErrInvalidRecord apperrors.Error = ErrLedger.New("invalid ledger record").SetKind(apperrors.KindValidation).SetStatusCode(http.StatusBadRequest)

	// ErrBackend wraps failures reported by a storage backend.
	ErrBackend apperrors.Error = ErrLedger.New("ledger backend failure")
)
