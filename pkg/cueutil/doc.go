// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE parsing utilities.
//
// agentpack validates its provisioning config against an embedded CUE
// schema before anything is built. The package implements the 3-step
// parsing flow used by the config package:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with schema
//  3. Validate and decode to a Go struct
//
// # Usage
//
//	//go:embed config_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[Config](
//	    schemaBytes,
//	    userFileBytes,
//	    "#Config",
//	    cueutil.WithFilename("agentpack.cue"),
//	)
//	if err != nil {
//	    return nil, err // error includes the CUE path to the invalid field
//	}
//	return result.Value, nil
package cueutil
