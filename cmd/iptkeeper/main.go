package main

import (
	"fmt"
	"os"

	"github.com/iptkeeper/iptkeeper/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "iptkeeper: %v\n", err)
		os.Exit(1)
	}
}
