// Command nodal-server runs the bundled example service behind a nodal
// Server, wiring the urfave/cli/v2 + viper configuration stack the rest
// of the retrieved corpus's service binaries use.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nodalrpc/nodal/config"
	"github.com/nodalrpc/nodal/interceptor"
	"github.com/nodalrpc/nodal/internal/exampleservice"
	"github.com/nodalrpc/nodal/registry"
	"github.com/nodalrpc/nodal/server"
	"github.com/nodalrpc/nodal/stats/otelstats"
)

func main() {
	app := &cli.App{
		Name:  "nodal-server",
		Usage: "run the bundled example service over nodal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a config file"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		zap.L().Fatal("nodal-server exited", zap.Error(err))
	}
}

func run(c *cli.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	builder := registry.NewBuilder()
	desc, srv := exampleservice.NewServiceDesc(&exampleservice.Echo{
		Features: []exampleservice.Feature{{Name: "alpha"}, {Name: "beta"}, {Name: "gamma"}},
	})
	if err := builder.Register(desc, srv); err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())
	tracer := tp.Tracer("nodal-server")

	statsHandler, err := otelstats.New(otel.Meter("nodal-server"))
	if err != nil {
		return err
	}

	s := server.New(builder.Build(), server.Config{
		Addr:                  cfg.Server.Addr,
		Logger:                logger,
		MaxReceiveMessageSize: cfg.Server.MaxReceiveMessageSize,
		DrainTimeout:          cfg.Server.DrainTimeout,
		StatsHandler:          statsHandler,
		UnaryInterceptors: []interceptor.UnaryServerInterceptor{
			interceptor.UnaryServerCorrelationID(),
			interceptor.UnaryServerTracing(tracer),
			interceptor.UnaryServerLogging(logger),
		},
		StreamInterceptors: []interceptor.StreamServerInterceptor{
			interceptor.StreamServerCorrelationID(),
			interceptor.StreamServerTracing(tracer),
			interceptor.StreamServerLogging(logger),
		},
	})

	grp, grpCtx := errgroup.WithContext(c.Context)
	grp.Go(s.ListenAndServe)
	grp.Go(func() error {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		select {
		case <-stop:
			logger.Info("shutting down")
			return s.Shutdown(context.Background())
		case <-grpCtx.Done():
			return nil
		}
	})
	return grp.Wait()
}
