package httpx

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// SendJsonRsp writes msg as JSON with the given status code. Pre-marshaled JSON
// passed as string or []byte is written unchanged when it is valid.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, msg any) {
	var msgJson []byte
	switch v := msg.(type) {
	case string:
		if json.Valid([]byte(v)) {
			msgJson = []byte(v)
		}
	case []byte:
		if json.Valid(v) {
			msgJson = v
		}
	}
	if msgJson == nil {
		var err error
		msgJson, err = json.Marshal(msg)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("unable to marshal response")
			ErrApplicationError("unable to marshal response").Send(w)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(msgJson); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to write response")
	}
}
