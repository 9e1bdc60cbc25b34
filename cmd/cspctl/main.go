// Command cspctl prints the security headers the edge function would attach
// for a host and checks environments files before they are deployed.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
