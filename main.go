// file: main.go
// version: 2.0.0
// guid: 473a2eb1-076b-4a86-bca0-73375e838888

package main

import (
	"fmt"
	"os"

	"github.com/jdfalk/bookmeta/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
