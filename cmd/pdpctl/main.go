// Command pdpctl is the CLI front end for the XACML 3.0 policy decision
// point core: load a policy, evaluate one request against it, and print
// the resulting Response.
package main

import "github.com/lattice-abac/pdp/cmd/pdpctl/cmd"

func main() {
	cmd.Execute()
}
