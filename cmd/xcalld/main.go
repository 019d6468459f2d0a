// Command xcalld hosts the xCall cross-chain dispatcher.
package main

import (
	"fmt"
	"os"

	"github.com/icon-project/xcall-core/cmd/xcalld/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
