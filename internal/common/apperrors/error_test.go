package apperrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("chain", func(t *testing.T) {
		ErrBaseErr := New("base error")
		assert.Equal(t, "base error", ErrBaseErr.Error())
		assert.Equal(t, "msg", ErrBaseErr.New("msg").Error())
		assert.ErrorIs(t, ErrBaseErr, ErrBaseErr)

		ErrFirstLevel := ErrBaseErr.New("first level")
		assert.Equal(t, "first level", ErrFirstLevel.Error())
		assert.ErrorIs(t, ErrFirstLevel, ErrBaseErr)

		ErrAnotherErr := New("another error")
		ErrAnotherErrMsg := ErrAnotherErr.Msg("another error msg")
		ErrWrappedErr := ErrFirstLevel.Err(ErrAnotherErrMsg)
		assert.Equal(t, "first level", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, ErrAnotherErr)

		err := errors.New("error")
		ErrWrappedErr = ErrFirstLevel.MsgErr("msg", err)
		assert.Equal(t, "msg", ErrWrappedErr.Error())
		assert.ErrorIs(t, ErrWrappedErr, ErrBaseErr)
		assert.ErrorIs(t, ErrWrappedErr, err)

		goErr := fmt.Errorf("go error")
		assert.ErrorIs(t, ErrFirstLevel.Err(goErr), goErr)
	})

	t.Run("kind and status are inherited", func(t *testing.T) {
		ErrLedger := New("ledger error").SetKind(KindLedger).SetStatusCode(http.StatusBadGateway)
		ErrRead := ErrLedger.New("read failed")
		assert.Equal(t, KindLedger, ErrRead.Kind())
		assert.Equal(t, http.StatusBadGateway, ErrRead.StatusCode())
		assert.Equal(t, KindLedger, ErrRead.Msg("again").Kind())
		assert.Equal(t, KindLedger, KindOf(fmt.Errorf("wrapped: %w", ErrRead)))
		assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
		assert.Equal(t, "ledger", KindLedger.String())
	})

	t.Run("expand", func(t *testing.T) {
		ErrParse := New("cannot parse").SetExpandError(true)
		e := ErrParse.Err(errors.New("unknown size XXS"), errors.New("quantity must be positive"))
		assert.Equal(t, "cannot parse; cannot parse; unknown size XXS; quantity must be positive", e.ErrorAll())
		assert.Len(t, e.UnwrapAll(), 3)
		assert.Equal(t, "p: cannot parse: s", ErrParse.Prefix("p").Suffix("s").Error())
	})
}
