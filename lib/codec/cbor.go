// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for raw answer
// snapshots in the results table. Core Deterministic Encoding (RFC 8949
// §4.2) means the same answer sequence always produces identical bytes,
// so a stored snapshot can be compared or deduplicated byte-wise.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// When decoding into any, produce map[string]any rather than
		// the CBOR default map[any]any, which encoding/json and most
		// Go code cannot consume. Struct decoding is unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v with Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
