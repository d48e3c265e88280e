// The main package for the guidecrawler executable.
package main

import (
	"guidecrawler/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
