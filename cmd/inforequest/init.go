package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/inforequest/inforequest/internal/config"
	"github.com/spf13/cobra"
)

var configTemplate = `[server]
http_addr = ":8080"
grpc_addr = ":9090"

[storage]
driver = "%s"
dsn = "%s"
# redis_addrs = ["localhost:6379"]
namespace = "inforequest"

[calendar]
czech_holidays = true
# holidays = ["2024-12-27"]
cache_minutes = 60

[log]
level = "info"

[wizard]
max_steps = 1000
`

var envTemplate = `# Read by inforequest and inforequestd on startup.
INFOREQUEST_OWNER=%s
`

func (a *app) initCmd() *cobra.Command {
	var driver string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .inforequest/config and .env",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initProject(cmd, driver, a.v.GetString("owner"))
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "storage driver: sqlite, redis or memory")
	return cmd
}

func initProject(cmd *cobra.Command, driver, owner string) error {
	stderr := cmd.ErrOrStderr()
	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return fmt.Errorf("creating %s/: %w", config.Dir, err)
	}

	// Write all files, skipping any that already exist
	dsn := filepath.Join(config.Dir, "inforequest.db")
	files := []struct{ path, content string }{
		{filepath.Join(config.Dir, "config"), fmt.Sprintf(configTemplate, driver, dsn)},
		{".env", fmt.Sprintf(envTemplate, owner)},
	}
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Fprintf(stderr, "  skip %s (already exists)\n", f.path)
			continue
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
		fmt.Fprintf(stderr, "  create %s\n", f.path)
	}

	cwd, _ := os.Getwd()
	if _, err := config.Load(cwd); err != nil {
		return fmt.Errorf("checking %s/config: %w", config.Dir, err)
	}
	fmt.Fprintf(stderr, "\nInitialized inforequest project in %s\n", filepath.Base(cwd))
	fmt.Fprintf(stderr, "\nNext steps:\n")
	fmt.Fprintf(stderr, "  1. inforequest create --subject \"...\" --obligee \"...\" --sent YYYY-MM-DD\n")
	fmt.Fprintf(stderr, "  2. inforequestd\n")
	return nil
}
