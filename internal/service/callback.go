package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Callback is the gateway's final result for one push payment.
type Callback struct {
	TransactionRef string
	ResultCode     int
	Description    string
}

// Succeeded reports a zero result code.
func (c Callback) Succeeded() bool {
	return c.ResultCode == 0
}

type callbackEnvelope struct {
	Body *struct {
		StkCallback *struct {
			CheckoutRequestID string          `json:"CheckoutRequestID"`
			ResultCode        json.RawMessage `json:"ResultCode"`
			ResultDesc        string          `json:"ResultDesc"`
		} `json:"stkCallback"`
	} `json:"Body"`
	Result *struct {
		CheckoutID        string          `json:"checkoutId"`
		ResultCode        json.RawMessage `json:"resultCode"`
		ResultDescription string          `json:"resultDescription"`
	} `json:"result"`
}

// ParseCallback accepts the Daraja STK callback envelope
// ({"Body":{"stkCallback":{...}}}) and the generic {"result":{...}} form.
// A payload without a reference parses to an empty TransactionRef.
func ParseCallback(payload []byte) (Callback, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	var (
		cb   Callback
		code json.RawMessage
	)
	switch {
	case env.Body != nil && env.Body.StkCallback != nil:
		cb.TransactionRef = env.Body.StkCallback.CheckoutRequestID
		cb.Description = env.Body.StkCallback.ResultDesc
		code = env.Body.StkCallback.ResultCode
	case env.Result != nil:
		cb.TransactionRef = env.Result.CheckoutID
		cb.Description = env.Result.ResultDescription
		code = env.Result.ResultCode
	default:
		return Callback{}, nil
	}

	if cb.TransactionRef == "" {
		return cb, nil
	}
	n, err := parseResultCode(code)
	if err != nil {
		return Callback{}, fmt.Errorf("%w: result code: %v", ErrMalformedCallback, err)
	}
	cb.ResultCode = n
	return cb, nil
}

// parseResultCode accepts 0 as well as "0".
func parseResultCode(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errors.New("missing")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.Atoi(s)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}
