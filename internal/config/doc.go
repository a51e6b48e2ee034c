// SPDX-License-Identifier: MPL-2.0

// Package config loads and validates the agentpack provisioning config.
//
// The config file ("agentpack.cue") describes the image to provision: the
// base images for the build and runtime stages, the service account
// identity, the stateful directory layout, the application artifact with
// its optional extras, the vendored plugin set, and the native package
// list for the runtime base.
//
// Loading is a two-step flow: the CUE file is validated against an
// embedded CUE schema (pkg/cueutil), then merged into a viper instance so
// that defaults and AGENTPACK_* environment variable overrides compose in
// the usual precedence order (flags > env > file > defaults).
package config
