package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"docrag/internal/errs"
	"docrag/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "docrag: %v\n", err)
		if errs.KindOf(err) == errs.KindInput {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errUsage
	}
	switch args[0] {
	case "ingest":
		return ingestCmd(ctx, args[1:], stdout, stderr)
	case "search":
		return searchCmd(ctx, args[1:], stdout, stderr)
	case "stats":
		return statsCmd(ctx, args[1:], stdout, stderr)
	case "runs":
		return runsCmd(ctx, args[1:], stdout, stderr)
	case "eval":
		return evalCmd(ctx, args[1:], stdout, stderr)
	case "serve":
		return serveCmd(ctx, args[1:], stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return errUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "docrag - document retrieval over embedded chunks")
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  docrag ingest [--dir documents] [--pattern '*.md']")
	fmt.Fprintln(w, "  docrag search [--k 5] [--json] \"<query>\"")
	fmt.Fprintln(w, "  docrag stats")
	fmt.Fprintln(w, "  docrag runs [--limit 20]")
	fmt.Fprintln(w, "  docrag eval --cases cases.yaml")
	fmt.Fprintln(w, "  docrag serve [--addr :8089]")
	fmt.Fprintln(w, "  docrag version")
}
