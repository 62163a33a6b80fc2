package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/inforequest/inforequest/internal/agent"
	"github.com/inforequest/inforequest/internal/config"
	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/logger"
	"github.com/inforequest/inforequest/internal/service"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the settings shared by every command. Flags and INFOREQUEST_*
// variables bind to the same viper keys.
type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix("INFOREQUEST")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "inforequest",
		Short:         "Track freedom of information requests from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// a missing .env is fine
			_ = godotenv.Load()
			level := "warn"
			if a.v.GetBool("verbose") {
				level = "debug"
			}
			return logger.Init(level, true)
		},
	}
	root.PersistentFlags().String("config-file", "", "path to config file (default .inforequest/config)")
	root.PersistentFlags().String("owner", "", "owner of the records (env INFOREQUEST_OWNER)")
	root.PersistentFlags().String("today", "", "evaluate as of this date instead of today")
	root.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")
	a.v.BindPFlags(root.PersistentFlags())

	root.AddCommand(
		a.initCmd(),
		a.createCmd(),
		a.emailCmd(),
		a.deadlineCmd(),
		a.eligibleCmd(),
		a.extendCmd(),
		a.stepCmd(),
		a.draftCmd(),
	)
	return root
}

func (a *app) config() (*config.Config, error) {
	if path := a.v.GetString("config-file"); path != "" {
		return config.LoadFile(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.Load(cwd)
}

func (a *app) owner() (string, error) {
	owner := a.v.GetString("owner")
	if owner == "" {
		return "", fmt.Errorf("no owner: pass --owner or set INFOREQUEST_OWNER")
	}
	return owner, nil
}

func (a *app) now() time.Time {
	if s := a.v.GetString("today"); s != "" {
		if d, err := domain.ParseDate(s); err == nil {
			return d
		}
	}
	return time.Now()
}

func (a *app) clock() domain.Clock {
	return domain.ClockFunc(a.now)
}

// session is an open set of stores plus the service bound to them.
type session struct {
	cfg     *config.Config
	stores  service.Stores
	svc     *service.WizardService
	closers []func() error
}

func (s *session) Close() error { return agent.Close(s.closers) }

func (a *app) open(ctx context.Context, opts ...service.Option) (*session, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	cal, err := cfg.WorkdayCalendar()
	if err != nil {
		return nil, err
	}
	stores, closers, err := agent.OpenStores(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	opts = append([]service.Option{
		service.WithClock(a.clock()),
		service.WithNow(a.now),
		service.WithLogger(logger.L()),
		service.WithMaxSteps(cfg.Wizard.MaxSteps),
	}, opts...)
	svc, err := service.New(stores, cal, opts...)
	if err != nil {
		agent.Close(closers)
		return nil, err
	}
	return &session{cfg: cfg, stores: stores, svc: svc, closers: closers}, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
