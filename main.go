// The main package for the venue-harvester executable.
package main

import (
	"github.com/JakeFAU/venue-harvester/cmd"
)

func main() {
	cmd.Execute()
}
