// Command rei-os syncs consulting-ops data, keeps spend analytics current
// and raises budget alerts.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
