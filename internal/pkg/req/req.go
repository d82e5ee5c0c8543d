/*
Package req provides helper functions for parsing client-supplied data.

It binds the JSON payloads carried inside WebSocket event envelopes to typed structs,
mapping decoding failures onto application error codes so handlers can report them
back to the sending connection.
*/
package req

import (
	"bytes"
	"encoding/json"

	"growchat/internal/pkg/errs"
)

// MaxPayloadBytes bounds a single event payload. The transport already caps whole frames;
// this guards payloads handed in from other sources.
const MaxPayloadBytes = 8192

// BindPayload decodes the raw JSON payload of an event into dst.
// An absent or null payload is reported as ErrInvalidParams, malformed JSON as ErrInvalidJSONFormat.
// Unknown fields are accepted: identities are opaque client profiles.
func BindPayload(raw json.RawMessage, dst any) *errs.CustomError {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if len(trimmed) > MaxPayloadBytes {
		return errs.NewError(errs.ErrInvalidParams)
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	return nil
}
