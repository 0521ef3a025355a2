// Command quotad serves the quota admin API and demo routes, and simulates load against a policy.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
