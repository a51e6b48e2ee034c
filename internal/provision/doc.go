// SPDX-License-Identifier: MPL-2.0

// Package provision drives the host side of the image build: it assembles a
// temporary build context (application source, vendored plugins, the
// agentpack binary, and the resolved config), generates the multi-stage
// Dockerfile whose RUN lines invoke the provisioning stages, and builds the
// image through a container engine.
//
// Built images are cached by a content hash of everything that goes into
// them, so rebuilding with unchanged inputs reuses the existing image.
package provision
