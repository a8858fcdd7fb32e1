// Command saru-dev is the local dev harness: it drives the runtime core
// (internal/runtime) against the reference host (internal/hostabi/localhost)
// behind a plain HTTP listener, standing in for the sandboxed guest engine
// and its embedding host during development.
package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/saru-dev.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("saru-dev", version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
