// SPDX-License-Identifier: MPL-2.0

// Package pipeline implements the in-rootfs provisioning stages that turn a
// bare runtime base into a ready agent image: build the application artifact,
// prepare the base (native packages and the service account), configure the
// group-0 ownership model, install the artifact, and install vendored
// plugins.
//
// Each stage is an independent Stage value; the Runner executes them in
// order with all-or-nothing semantics. The same stages back both the
// generated multi-stage container build (one `agentpack provision --stage`
// RUN line per stage) and direct invocation against a rootfs prefix.
package pipeline
