// Command agriscan records crop disease scans on the device and uploads
// them when a connection is available.
package main

import (
	"github.com/marcus/agriscan/cmd"
	"github.com/marcus/agriscan/internal/version"
)

// Version is set for releases with -ldflags "-X main.Version=v1.2.3".
var Version = "dev"

func main() {
	cmd.SetVersion(version.Resolve(Version))
	cmd.Execute()
}
