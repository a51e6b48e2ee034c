// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// DefaultMaxFileSize is the largest config file ParseAndDecode accepts.
// Provisioning configs are small; anything bigger is almost certainly a
// mistake (or a decompression bomb) and is rejected up front.
const DefaultMaxFileSize int64 = 1 << 20 // 1 MiB

type (
	// ParseResult contains the result of a successful CUE parse operation.
	ParseResult[T any] struct {
		// Value is the decoded Go struct.
		Value *T

		// Unified is the unified CUE value, available for callers that need
		// to extract additional metadata beyond the decoded struct.
		Unified cue.Value
	}

	// Option configures a ParseAndDecode call.
	Option func(*options)

	options struct {
		filename    string
		maxFileSize int64
	}
)

// WithFilename sets the filename used in error messages.
func WithFilename(name string) Option {
	return func(o *options) {
		o.filename = name
	}
}

// WithMaxFileSize overrides the maximum accepted input size.
func WithMaxFileSize(size int64) Option {
	return func(o *options) {
		o.maxFileSize = size
	}
}

// ParseAndDecode performs the 3-step CUE parsing flow: compile the embedded
// schema, compile user data and unify with the schema root at schemaPath
// (e.g. "#Config"), then validate and decode into T.
//
// Errors carry the file path and the CUE path of the offending field so the
// operator can locate the problem without reading the schema.
func ParseAndDecode[T any](schema, data []byte, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	o := options{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(&o)
	}

	filename := o.filename
	if filename == "" {
		filename = "<input>"
	}

	if err := CheckFileSize(data, o.maxFileSize, filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if userValue.Err() != nil {
		return nil, FormatError(userValue.Err(), filename)
	}

	schemaRoot := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if schemaRoot.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, schemaRoot.Err())
	}

	unified := schemaRoot.Unify(userValue)

	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, FormatError(err, filename)
	}

	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, filename)
	}

	return &ParseResult[T]{
		Value:   &result,
		Unified: unified,
	}, nil
}

// CheckFileSize verifies that data does not exceed the specified maximum size.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes",
			filename, len(data), maxSize)
	}
	return nil
}
