// Command gpustack prepares a Docker host to serve Ollama on an NVIDIA GPU:
// it checks prerequisites, probes the GPU, starts the container and pulls a
// quantized model.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], defaultEnvironment())
	stop()
	os.Exit(code)
}
