// Command exorde-fetch downloads paginated Exorde analytics history into JSON
// files.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/exorde-client/internal/config"
	"github.com/Sternrassler/exorde-client/pkg/client"
	"github.com/Sternrassler/exorde-client/pkg/logging"
	"github.com/Sternrassler/exorde-client/pkg/metrics"
	"github.com/Sternrassler/exorde-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries the configuration shared by the subcommands.
type app struct {
	v          *viper.Viper
	configFile string
}

// NewRootCmd builds the exorde-fetch command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:          "exorde-fetch",
		Short:        "Fetch paginated Exorde analytics history",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "path to config file (yaml, toml or json)")
	flags.String("api-key", "", "API key (default $EXORDE_API_KEY)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("pretty", false, "human-readable console logs")
	flags.String("metrics-addr", "", "serve /metrics, /health and /ready on this address")
	flags.String("redis-addr", "", "Redis address for the page cache and shared quota state")
	flags.StringP("output", "o", "", "output file; a .gz suffix compresses it")
	flags.Int("max-pages", 0, "stop a fetch after this many pages (0 = no limit)")

	if err := a.bindFlags(flags, rootBindings); err != nil {
		panic(err)
	}

	cmd.AddCommand(newHistoryCmd(a), newGroupsCmd(a))
	return cmd
}

// rootBindings maps config keys to persistent flags.
var rootBindings = map[string]string{
	"api.key":         "api-key",
	"log.level":       "log-level",
	"log.pretty":      "pretty",
	"metrics.addr":    "metrics-addr",
	"redis.address":   "redis-addr",
	"output.path":     "output",
	"fetch.max_pages": "max-pages",
}

// bindFlags makes flags override the file and environment when they are given
// on the command line. Subcommands bind their own flags when they run, since
// they share config keys.
func (a *app) bindFlags(flags *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("bind %s: no flag --%s", key, name)
		}
		if err := a.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// runtime is everything a subcommand needs to fetch and write.
type runtime struct {
	cfg     *config.Config
	logger  zerolog.Logger
	client  *client.Client
	fetcher *pagination.Fetcher
	closers []func()
}

func (a *app) setup(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.LoggingConfig()
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)

	rt := &runtime{cfg: cfg, logger: logging.NewLogger("cli")}

	var rdb *redis.Client
	if opts := cfg.RedisOptions(); opts != nil {
		rdb = redis.NewClient(opts)
		rt.closers = append(rt.closers, func() { rdb.Close() })

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rt.close()
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
		}
		rt.logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	}

	c, err := client.New(cfg.ClientConfig(rdb))
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	rt.client = c
	rt.closers = append(rt.closers, func() { c.Close() })
	rt.fetcher = pagination.NewFetcher(c, cfg.FetcherConfig())

	if cfg.Metrics.Addr != "" {
		var ready metrics.ReadyFunc
		if rdb != nil {
			ready = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
		rt.startMetrics(metrics.NewServer(cfg.Metrics.Addr, ready))
	}

	return rt, nil
}

func (rt *runtime) startMetrics(srv *http.Server) {
	go func() {
		rt.logger.Info().Str("addr", srv.Addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	rt.closers = append(rt.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("Metrics server shutdown")
		}
	})
}

// close releases resources in reverse order of acquisition.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}
