package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(newCLI(os.Stdin, os.Stdout, os.Stderr)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
