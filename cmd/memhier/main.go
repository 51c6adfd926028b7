// Command memhier simulates a single-core memory hierarchy and reports the
// timing and the statistics of every level.
package main

import "github.com/tebeka/atexit"

func main() {
	Execute()
	atexit.Exit(0)
}
