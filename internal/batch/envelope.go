package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mohammed-shakir/statsector/internal/core/model"
	"github.com/mohammed-shakir/statsector/internal/lookup"
)

const (
	InvalidPayloadMessage = "Invalid payload format"
	InvalidModeMessage    = "Invalid mode"
)

// Request is a decoded batch envelope.
type Request struct {
	// RequestID is the caller's own id, when it sends one; used for logs only.
	RequestID string
	Mode      model.Mode
	Field     string
	Calls     []model.BatchCall
}

type envelope struct {
	RequestID          string `json:"requestId"`
	UserDefinedContext *struct {
		Mode  *string `json:"mode"`
		Field *string `json:"field"`
	} `json:"userDefinedContext"`
	Calls *[]json.RawMessage `json:"calls"`
}

// Decode reads a batch envelope. Envelope problems fail the whole request
// with KindInvalidBatchRequest; a malformed row only marks that row.
// Unknown envelope members (caller, sessionUser, ...) are ignored.
func Decode(r io.Reader) (Request, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return Request{}, model.Wrap(model.KindInvalidBatchRequest, InvalidPayloadMessage, err)
	}
	udc := env.UserDefinedContext
	if udc == nil || udc.Mode == nil || udc.Field == nil {
		return Request{}, model.NewError(model.KindInvalidBatchRequest, InvalidPayloadMessage)
	}
	mode := model.Mode(*udc.Mode)
	if mode != model.ModeAddress && mode != model.ModeCoordinates {
		return Request{}, model.NewError(model.KindInvalidBatchRequest, InvalidModeMessage)
	}
	if env.Calls == nil {
		return Request{}, model.NewError(model.KindInvalidBatchRequest, InvalidPayloadMessage)
	}

	req := Request{
		RequestID: env.RequestID,
		Mode:      mode,
		Field:     *udc.Field,
		Calls:     make([]model.BatchCall, len(*env.Calls)),
	}
	for i, raw := range *env.Calls {
		req.Calls[i] = decodeCall(mode, raw)
	}
	return req, nil
}

func decodeCall(mode model.Mode, raw json.RawMessage) model.BatchCall {
	var args []json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return model.BatchCall{RowErr: model.NewError(model.KindInvalidInput, "call must be a JSON array")}
	}
	arg := func(i int) json.RawMessage {
		if i < len(args) && !isNull(args[i]) {
			return args[i]
		}
		return nil
	}

	var call model.BatchCall
	switch mode {
	case model.ModeAddress:
		if a := arg(0); a != nil {
			var s string
			if err := json.Unmarshal(a, &s); err != nil {
				call.RowErr = model.NewError(model.KindInvalidInput, "'address' must be of type string.")
				return call
			}
			call.Address = &s
		}
	case model.ModeCoordinates:
		for i, name := range []string{"lat", "lon"} {
			a := arg(i)
			if a == nil {
				continue
			}
			v, err := coordinate(name, a)
			if err != nil {
				call.RowErr = err
				return call
			}
			if i == 0 {
				call.Lat = &v
			} else {
				call.Lon = &v
			}
		}
	}
	return call
}

// coordinate accepts a JSON number or a numeric string.
func coordinate(name string, raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return lookup.ParseCoordinate(name, s)
	}
	return 0, model.NewError(model.KindInvalidInput, fmt.Sprintf("Invalid value for '%s': must be a finite number.", name))
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Input maps a decoded row onto the single-lookup input.
func Input(c model.BatchCall) lookup.Input {
	in := lookup.Input{Lat: c.Lat, Lon: c.Lon, Address: c.Address}
	if in.Address != nil && strings.TrimSpace(*in.Address) == "" {
		in.Address = nil
	}
	return in
}
