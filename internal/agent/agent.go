// Package agent assembles the daemon: stores, calendar, wizard service and
// the HTTP and gRPC servers.
package agent

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	adaptgrpc "github.com/inforequest/inforequest/internal/adapters/grpc"
	"github.com/inforequest/inforequest/internal/adapters/memory"
	"github.com/inforequest/inforequest/internal/adapters/redis"
	"github.com/inforequest/inforequest/internal/adapters/rest"
	"github.com/inforequest/inforequest/internal/adapters/sqlite"
	"github.com/inforequest/inforequest/internal/config"
	"github.com/inforequest/inforequest/internal/logger"
	"github.com/inforequest/inforequest/internal/service"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

type Agent struct {
	Config config.Config

	stores     service.Stores
	closers    []func() error
	service    *service.WizardService
	httpServer *rest.Server
	grpcServer *grpc.Server
	health     *health.Server
	grpcLis    net.Listener
	failed     chan error

	shutdown     bool
	shutdownLock sync.Mutex
	wg           sync.WaitGroup
}

func New(cfg config.Config) (*Agent, error) {
	a := &Agent{Config: cfg, failed: make(chan error, 2)}
	setup := []func() error{
		a.setupStores,
		a.setupService,
		a.setupHttpServer,
		a.setupGrpcServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStores() error {
	stores, closers, err := OpenStores(context.Background(), a.Config.Storage)
	if err != nil {
		return err
	}
	a.stores, a.closers = stores, closers
	return nil
}

// OpenStores opens the stores the storage config names. The returned closers
// release them and run in reverse order.
func OpenStores(ctx context.Context, st config.StorageConfig) (service.Stores, []func() error, error) {
	switch st.Driver {
	case "memory":
		m := memory.NewStore()
		return service.Stores{Drafts: m, Inforequests: m, Obligees: m}, nil, nil
	case "sqlite", "redis":
	default:
		return service.Stores{}, nil, fmt.Errorf("unknown storage driver %q", st.Driver)
	}

	if st.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(st.DSN), 0755); err != nil {
			return service.Stores{}, nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqlite.NewStore(st.DSN)
	if err != nil {
		return service.Stores{}, nil, fmt.Errorf("opening store: %w", err)
	}
	closers := []func() error{db.Close}
	stores := service.Stores{Drafts: db, Inforequests: db, Obligees: db}

	// Drafts move to redis; the case records stay in sqlite.
	if st.Driver == "redis" {
		drafts, err := redis.NewDraftStore(ctx, redis.Config{
			Addrs:     st.RedisAddrs,
			Namespace: st.Namespace,
		})
		if err != nil {
			db.Close()
			return service.Stores{}, nil, err
		}
		closers = append(closers, drafts.Close)
		stores.Drafts = drafts
	}
	logger.Info("storage ready", zap.String("driver", st.Driver), zap.String("dsn", st.DSN))
	return stores, closers, nil
}

func (a *Agent) setupService() error {
	cal, err := a.Config.WorkdayCalendar()
	if err != nil {
		return err
	}
	a.service, err = service.New(a.stores, cal,
		service.WithLogger(logger.L()),
		service.WithMaxSteps(a.Config.Wizard.MaxSteps))
	return err
}

func (a *Agent) setupHttpServer() error {
	a.httpServer = rest.NewServer(a.Config.Server.HTTPAddr, a.service, logger.L())
	return nil
}

func (a *Agent) setupGrpcServer() error {
	a.grpcServer = grpc.NewServer()
	a.health = adaptgrpc.Register(a.grpcServer, adaptgrpc.NewWizardsServer(a.service, logger.L()))
	return nil
}

// Service is the wizard service the servers are bound to.
func (a *Agent) Service() *service.WizardService { return a.service }

// Stores are the stores the service runs on.
func (a *Agent) Stores() service.Stores { return a.stores }

// GRPCAddr is the address the gRPC server listens on once started.
func (a *Agent) GRPCAddr() net.Addr {
	if a.grpcLis == nil {
		return nil
	}
	return a.grpcLis.Addr()
}

func (a *Agent) Start() error {
	lis, err := listen(a.Config.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.Config.Server.GRPCAddr, err)
	}
	a.grpcLis = lis

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.Start(); err != nil {
			a.failed <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		defer a.wg.Done()
		logger.Info("starting grpc server", zap.String("addr", lis.Addr().String()))
		if err := a.grpcServer.Serve(lis); err != nil {
			a.failed <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	return nil
}

// Failed receives the error of a server that stopped on its own.
func (a *Agent) Failed() <-chan error { return a.failed }

func (a *Agent) Shutdown() error {
	a.shutdownLock.Lock()
	if a.shutdown {
		a.shutdownLock.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownLock.Unlock()
	logger.Info("shutting down server")

	a.health.Shutdown()
	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			logger.Info("stopping grpc server")
			a.grpcServer.GracefulStop()
			return nil
		},
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return a.close()
}

func (a *Agent) close() error {
	err := Close(a.closers)
	a.closers = nil
	return err
}

// Close runs closers in reverse order and returns the first error.
func Close(closers []func() error) error {
	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// listen accepts tcp addresses and unix:// socket paths.
func listen(addr string) (net.Listener, error) {
	if path, ok := strings.CutPrefix(addr, "unix://"); ok {
		os.Remove(path)
		return net.Listen("unix", path)
	}
	return net.Listen("tcp", addr)
}
