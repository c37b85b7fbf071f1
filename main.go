// Command corpus-pipeline acquires UK legal documents and assembles
// deterministic training datasets.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/legal-llama/corpus-pipeline/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
