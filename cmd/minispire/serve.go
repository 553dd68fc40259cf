package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"syscall"

	spiredevserver "github.com/cofide/unixcred/pkg/spire-devserver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	pb "github.com/spiffe/go-spiffe/v2/proto/spiffe/workload"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Workload API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := spiredevserver.LoadServerConfig(configPath)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cfg)
	},
}

func runServer(ctx context.Context, cfg *spiredevserver.ServerConfig) error {
	zerolog.SetGlobalLevel(parseLogLevel(cfg.Log.Level))
	logger := log.With().Str("component", "minispire").Logger()

	kt, err := spiredevserver.ParseKeyType(cfg.KeyType)
	if err != nil {
		return err
	}

	logger.Info().Str("key_type", kt.String()).Msg("Building in-memory CA")
	ca, err := spiredevserver.NewInMemoryCA(kt)
	if err != nil {
		return fmt.Errorf("failed to create in-memory CA: %w", err)
	}

	var metrics *spiredevserver.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = spiredevserver.NewMetrics(reg)
		startMetricsServer(ctx, cfg.Metrics.Address, reg)
	}

	if err := removeStaleSocket(cfg.SocketPath); err != nil {
		return err
	}
	lis, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("failed to listen to SPIRE socket: %w", err)
	}
	defer os.Remove(cfg.SocketPath)

	// any local user may call the Workload API
	if err := os.Chmod(cfg.SocketPath, 0o777); err != nil {
		lis.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.Creds(spiredevserver.NewCredentials(spiredevserver.CredentialsOptions{
			Logger:         logger,
			Metrics:        metrics,
			ResolveProcess: cfg.Attest.ResolveProcess,
		})))

	wl := spiredevserver.NewWorkloadHandler(spiredevserver.Config{
		CA:      ca,
		Domain:  cfg.TrustDomain,
		SVIDTTL: cfg.SVIDTTL,
		JWTTTL:  cfg.JWTTTL,
		Logger:  logger,
		Metrics: metrics,
	})
	pb.RegisterSpiffeWorkloadAPIServer(grpcServer, wl)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("socket", cfg.SocketPath).
			Str("trust_domain", cfg.TrustDomain).
			Msg("SPIRE server listening")
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server")
		// streams only end with their context, so don't wait on them
		grpcServer.Stop()
		return nil
	case err := <-serveErr:
		return err
	}
}

// removeStaleSocket deletes a socket left behind by a previous run. Anything
// other than a socket at path is an error.
func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}
