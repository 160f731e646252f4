// Command gatewayd runs the reverse HTTP tunnel gateway.
package main

import (
	"os"

	"github.com/nullbridge/tunnelgate/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
