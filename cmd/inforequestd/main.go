package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/inforequest/inforequest/internal/agent"
	"github.com/inforequest/inforequest/internal/config"
	"github.com/inforequest/inforequest/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type cli struct {
	cfg *config.Config
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file (default .inforequest/config).")
	cmd.Flags().String("http-addr", "", "listen address of the REST server")
	cmd.Flags().String("grpc-addr", "", "listen address of the grpc server, tcp or unix://path")
	cmd.Flags().String("storage-driver", "", "storage driver: sqlite, redis or memory")
	cmd.Flags().String("dsn", "", "sqlite database path")
	cmd.Flags().String("redis-addr", "", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "", "namespace of the redis keys")
	cmd.Flags().String("log-level", "", "log level")
	cmd.Flags().Bool("log-development", false, "human readable development logging")

	viper.SetEnvPrefix("INFOREQUEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	return viper.BindPFlags(cmd.Flags())
}

// setupConfig layers flags and INFOREQUEST_* variables over the config file.
func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	// a missing .env is fine
	_ = godotenv.Load()

	var err error
	if path := viper.GetString("config-file"); path != "" {
		c.cfg, err = config.LoadFile(path)
	} else {
		cwd, _ := os.Getwd()
		c.cfg, err = config.Load(cwd)
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	set := func(key string, dst *string) {
		if viper.IsSet(key) && viper.GetString(key) != "" {
			*dst = viper.GetString(key)
		}
	}
	set("http-addr", &c.cfg.Server.HTTPAddr)
	set("grpc-addr", &c.cfg.Server.GRPCAddr)
	set("storage-driver", &c.cfg.Storage.Driver)
	set("dsn", &c.cfg.Storage.DSN)
	set("namespace", &c.cfg.Storage.Namespace)
	set("log-level", &c.cfg.Log.Level)
	if addrs := viper.GetString("redis-addr"); addrs != "" {
		c.cfg.Storage.RedisAddrs = strings.Split(addrs, ",")
	}
	if viper.IsSet("log-development") {
		c.cfg.Log.Development = viper.GetBool("log-development")
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	return logger.Init(c.cfg.Log.Level, c.cfg.Log.Development)
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	a, err := agent.New(*c.cfg)
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case err := <-a.Failed():
		logger.Error("server stopped", zap.Error(err))
	}
	return a.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:          "inforequestd",
		Short:        "Serve the inforequest wizards over REST and grpc",
		PreRunE:      cli.setupConfig,
		RunE:         cli.run,
		SilenceUsage: true,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
