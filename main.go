// The main package for the harvester executable.
package main

import (
	"github.com/mozjobs/harvester/cmd"
)

func main() {
	cmd.Execute()
}
