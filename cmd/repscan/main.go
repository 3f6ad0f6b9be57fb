// Command repscan scans URLs against a reputation provider and records a
// verdict for each.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/raysh454/repscan/internal/app"
	"github.com/raysh454/repscan/internal/cli"
)

var commit = "unknown"

func versionString() string {
	v := strings.TrimSpace(app.Version)
	if v == "" {
		v = "dev"
	}
	c := strings.TrimSpace(commit)
	if c == "" || strings.EqualFold(c, "unknown") || strings.Contains(v, c) {
		return v
	}
	return v + "+" + c
}

func main() {
	// Cancellation stops the batch between URLs; the URL in flight finishes.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRoot(versionString()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "repscan:", err.Error())
		cancel()
		os.Exit(1)
	}
}
