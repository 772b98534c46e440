// SPDX-License-Identifier: AGPL-3.0-only

// Package wire holds the typed response shapes of the platform APIs and the
// boundary decoding that turns malformed payloads into a DecodeError.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DecodeError reports a response body that did not match the expected shape.
type DecodeError struct {
	Platform string
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode %s: %v", e.Platform, e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var errEmptyBody = errors.New("empty response body")

// Decode reads one JSON document from r into v, then runs v's Validate method
// when it has one.
func Decode(platform, endpoint string, r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errEmptyBody
		}
		return &DecodeError{Platform: platform, Endpoint: endpoint, Err: err}
	}

	if val, ok := v.(interface{ Validate() error }); ok {
		if err := val.Validate(); err != nil {
			return &DecodeError{Platform: platform, Endpoint: endpoint, Err: err}
		}
	}

	return nil
}
