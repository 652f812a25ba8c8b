package main

import (
	"fmt"
	"os"

	"github.com/bl791/chat-logger/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
