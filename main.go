// The main package for the leasecar-etl executable.
package main

import (
	"github.com/JakeFAU/leasecar-etl/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
