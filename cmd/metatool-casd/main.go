// Command metatool-casd serves a download mirror over gRPC so several
// machines running metatool can share one store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"google.golang.org/grpc"

	"metadisk.org/metatool/storage/casregistry"
	"metadisk.org/metatool/storage/grpccas"

	_ "metadisk.org/metatool/storage/ipfs"
	_ "metadisk.org/metatool/storage/localfs"
)

const defaultShutdownTimeout = 30 * time.Second

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("metatool-casd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "mirror backend name")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	maxMsg := fs.Int("max-msg-bytes", 0, "Max gRPC message size in bytes (send+recv); 0 uses grpc defaults")
	verbose := fs.Bool("v", false, "Debug logging")
	shutdownTimeout := fs.Duration("shutdown-timeout", defaultShutdownTimeout, "How long in-flight RPCs may run after a stop signal")

	flags := casregistry.RegisterFlags(fs, casregistry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	cas, closeFn, err := casregistry.Open(ctx, *backend, casregistry.UsageDaemon, flags.Config(*backend))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer lis.Close()

	var opts []grpc.ServerOption
	if *maxMsg > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(*maxMsg), grpc.MaxSendMsgSize(*maxMsg))
	}
	s := grpc.NewServer(opts...)
	grpccas.RegisterMirrorServer(s, &grpccas.Server{CAS: cas, Logger: logger})

	serveErr := make(chan error, 1)
	logger.Info("listening", "addr", lis.Addr().String(), "backend", *backend)
	go func() { serveErr <- s.Serve(lis) }()

	// SIGINT, SIGTERM and friends are handled by gfshutdown; ctx is the
	// embedding caller's stop signal.
	wait := gfshutdown.GracefulShutdown(ctx, *shutdownTimeout, map[string]gfshutdown.Operation{
		"grpc": func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), *shutdownTimeout)
			defer cancel()
			return stopServer(ctx, s, logger)
		},
	})

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			fmt.Fprintln(errOut, err)
			return 1
		}
		return 0
	case code := <-wait:
		<-serveErr
		return code
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		_ = stopServer(sctx, s, logger)
		<-serveErr
		return 0
	}
}

// stopServer drains in-flight RPCs and force-closes them once ctx expires.
// Handlers see their contexts canceled, which also kills backend
// subprocesses started for them.
func stopServer(ctx context.Context, s *grpc.Server, logger *slog.Logger) error {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("graceful stop timed out, closing open RPCs")
		s.Stop()
		<-done
		return ctx.Err()
	}
}
