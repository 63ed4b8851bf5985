// Command extract prints the text of every supported document in a
// directory as JSON, the same way uploads are extracted by the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/mx-space/contentgen/internal/modules/processing/extract"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding .pdf, .eml, .msg and .txt files")
	verbose := flag.Bool("v", false, "Log per-file progress")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := extract.New(logger).ExtractDir(ctx, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}
	if len(result.Failed) > 0 {
		os.Exit(2)
	}
}
