package exporter

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jumpstarter-dev/jumpstarter/pkg/backoff"
	"github.com/jumpstarter-dev/jumpstarter/pkg/driver"
	"github.com/jumpstarter-dev/jumpstarter/pkg/logstream"
	"github.com/jumpstarter-dev/jumpstarter/pkg/meta"
	pkgrouter "github.com/jumpstarter-dev/jumpstarter/pkg/router"
	"github.com/jumpstarter-dev/jumpstarter/pkg/session"
	"github.com/jumpstarter-dev/jumpstarter/pkg/xstream"
	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
)

// Config is everything an Exporter needs at startup: its identity, its
// driver tree factory, and its lifecycle hooks.
type Config struct {
	Labels        map[string]string
	DriverFactory func() driver.Driver
	BeforeLease   HookConfig
	AfterLease    HookConfig
	SocketDir     string
}

// Exporter drives the registration/status/listen loop against the
// Controller and serves the local Unix-socket ExporterService/RouterService
// for whichever lease currently holds it, one lease at a time.
type Exporter struct {
	meta.Metadata
	cfg        Config
	controller jumpstarterv1.ControllerServiceClient
	hooks      HookRunner
	logs       *LogSink
	lease      *LeaseContext

	statusBackoff backoff.Bounded
}

// New builds an Exporter bound to a controller client; dialing the
// Controller itself is the caller's responsibility (cmd/jmp dials it from
// the endpoint and token of an exporter config file).
func New(cfg Config, controller jumpstarterv1.ControllerServiceClient) *Exporter {
	ring := logstream.New()
	logs := NewLogSink(ring)
	return &Exporter{
		Metadata:   meta.New(cfg.Labels),
		cfg:        cfg,
		controller: controller,
		hooks:      HookRunner{Logs: logs},
		logs:       logs,
		lease:      NewLeaseContext(logs),
		statusBackoff: backoff.Bounded{
			Jittered:   backoff.Jittered{Initial: 200 * time.Millisecond, Max: 30 * time.Second},
			MaxRetries: 10,
		},
	}
}

// LeaseContext exposes the current lease context, served by the Unix
// socket server's GetStatus/LogStream handlers.
func (e *Exporter) LeaseContext() *LeaseContext { return e.lease }

// Serve runs the Controller status loop until ctx is cancelled: on each
// status update it notes the active lease name and, the first time one
// appears, starts handling connection requests for it via Listen. Once that
// lease ends, the loop starts over on a fresh Status stream.
func (e *Exporter) Serve(ctx context.Context) error {
	defer func() {
		_, _ = e.controller.Unregister(context.Background(), &jumpstarterv1.UnregisterRequest{Reason: "shutdown"})
	}()

	if err := e.registerInitial(ctx); err != nil {
		return fmt.Errorf("exporter: initial registration: %w", err)
	}

	for {
		if err := e.statusLoop(ctx); err != nil {
			delay, ok := e.statusBackoff.Allow()
			if !ok {
				return fmt.Errorf("exporter: status loop exhausted retries: %w", err)
			}
			log.Printf("exporter: status loop error, retrying in %s: %v", delay, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// registerInitial builds a throwaway driver tree purely to compute its
// report set, then registers it with the controller — mirroring
// Exporter.serve's "async with self.session(): pass" initial registration.
func (e *Exporter) registerInitial(ctx context.Context) error {
	root := e.cfg.DriverFactory()
	reg := driver.NewRegistry(root)
	_, err := e.controller.Register(ctx, &jumpstarterv1.RegisterRequest{
		Labels:  e.AllLabels(),
		Reports: reg.Reports(),
	})
	return err
}

func (e *Exporter) statusLoop(ctx context.Context) error {
	stream, err := e.controller.Status(ctx, &jumpstarterv1.StatusRequest{})
	if err != nil {
		return err
	}

	started := false
	leaseName := ""
	g, gctx := errgroup.WithContext(ctx)
	var endLease context.CancelFunc

	for {
		status, err := stream.Recv()
		if err != nil {
			if endLease != nil {
				endLease()
			}
			return err
		}
		e.statusBackoff.Reset()

		if leaseName != "" && leaseName != status.LeaseName {
			log.Printf("exporter: lease status changed, dropping existing connections")
			endLease()
			break
		}
		leaseName = status.LeaseName

		if !started && leaseName != "" {
			started = true
			var leaseCtx context.Context
			leaseCtx, endLease = context.WithCancel(gctx)
			g.Go(func() error { return e.handleLease(leaseCtx, leaseName) })
		}
		if status.Leased {
			log.Printf("exporter: currently leased by %s under %s", status.ClientName, status.LeaseName)
		}
	}

	return g.Wait()
}

// handleLease builds and resets the lease's Session and serves it over a
// per-lease Unix socket, runs the beforeLease hook, then answers Listen
// router-connection requests until the lease ends, and finally runs the
// afterLease hook.
func (e *Exporter) handleLease(ctx context.Context, leaseName string) error {
	e.lease.Begin(leaseName, "")

	sock := filepath.Join(e.cfg.SocketDir, leaseName+".sock")
	_ = os.Remove(sock)
	listener, err := net.Listen("unix", sock)
	if err != nil {
		return fmt.Errorf("exporter: listening on %s: %w", sock, err)
	}
	defer listener.Close()

	root := e.cfg.DriverFactory()
	sess := session.New(root, e.AllLabels())
	if err := sess.Reset(ctx); err != nil {
		return fmt.Errorf("exporter: resetting driver tree: %w", err)
	}
	e.lease.SetSession(sess)
	defer func() {
		sess.Close()
		e.lease.End()
	}()

	server := grpc.NewServer()
	jumpstarterv1.RegisterExporterServiceServer(server, newExporterServer(e.lease))
	jumpstarterv1.RegisterRouterServiceServer(server, newRouterServer(e.lease))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(listener) })
	g.Go(func() error {
		<-gctx.Done()
		server.GracefulStop()
		return nil
	})

	env := HookEnv(sock, leaseName, e.lease.ClientName())
	if err := e.hooks.Run(ctx, e.cfg.BeforeLease, HookBeforeLease, env); err != nil {
		hookErr, ok := err.(*HookExecutionError)
		if !ok {
			return err
		}
		e.lease.SetStatus(jumpstarterv1.StatusBeforeLeaseHookFailed, hookErr.Message)
		if hookErr.ShouldShutdownExporter() {
			return hookErr
		}
		// Stay in BEFORE_LEASE_HOOK_FAILED — not ready for driver calls —
		// until the controller clears this lease or ctx is otherwise
		// cancelled; afterLease still has to run once it does.
		<-gctx.Done()
	} else {
		e.lease.SetStatus(jumpstarterv1.StatusLeaseReady, "Ready for commands")
		g.Go(func() error { return e.listenLoop(gctx, leaseName, sock) })
	}

	err = g.Wait()

	e.lease.SetStatus(jumpstarterv1.StatusAfterLeaseHook, "Running afterLease hooks")
	if hookErr := e.hooks.Run(context.Background(), e.cfg.AfterLease, HookAfterLease, env); hookErr != nil {
		if he, ok := hookErr.(*HookExecutionError); ok {
			e.lease.SetStatus(jumpstarterv1.StatusAfterLeaseHookFailed, he.Message)
			if he.ShouldShutdownExporter() {
				return he
			}
		}
	}

	return err
}

// listenLoop answers Controller.Listen router-connection notifications by
// dialing the router for each one and forwarding it to the lease's local
// Unix socket, mirroring Exporter.handle's tg.start_soon(self.__handle, ...)
// fan-out.
func (e *Exporter) listenLoop(ctx context.Context, leaseName, sock string) error {
	stream, err := e.controller.Listen(ctx, &jumpstarterv1.ListenRequest{LeaseName: leaseName})
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for {
		resp, err := stream.Recv()
		if err != nil {
			return g.Wait()
		}
		endpoint, token := resp.RouterEndpoint, resp.RouterToken
		g.Go(func() error {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				return err
			}
			defer conn.Close()
			local := xstream.FromUnixConn(conn)
			return pkgrouter.Dial(gctx, endpoint, token, local, true, nil)
		})
	}
}

// localCredentials is the loopback credential for talking to a lease's own
// Unix-socket server, mirroring the original's
// grpc.local_channel_credentials(UDS).
func localCredentials() grpc.DialOption {
	return grpc.WithTransportCredentials(insecure.NewCredentials())
}
