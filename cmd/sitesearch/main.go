// Command sitesearch runs directory searches against a feed from the
// terminal, without the HTTP service.
//
// Usage:
//
//	sitesearch [flags] <command> [args]
//
// Commands:
//
//	query        - Run a filtered search and print a page of results
//	suggest      - Print autocomplete suggestions for a partial city name
//	export-index - Write the city index used by static autocomplete
//
// Feed sources come from the config file (-c), SP_FEED_* environment
// variables, or --feed / --fallback.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
