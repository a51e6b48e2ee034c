// SPDX-License-Identifier: MPL-2.0

package main

import cmd "agentpack/cmd/agentpack"

func main() {
	cmd.Execute()
}
