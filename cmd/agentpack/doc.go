// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for agentpack.
//
// The binary wears three hats: on the host, `agentpack build` drives the
// image build; inside the container build, `agentpack provision` runs the
// provisioning stages; and as the image entrypoint, `agentpack exec`
// replaces itself with the application command.
package cmd
