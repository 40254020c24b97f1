package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"taskmaster/internal/server"
	"taskmaster/internal/shutdown"
	"taskmaster/internal/utils"
)

// drainTimeout bounds graceful shutdown of serve
const drainTimeout = 10 * time.Second

// newServeCmd creates the 'serve' subcommand
func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task backend over HTTP",
		Long: "Serve projects, tasks and posts over the JSON API used by the rest backend.\n" +
			"Requests need 'Authorization: Bearer <server.token>' when a token is configured.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.conf.GetServerAddr()
			}
			return a.doServe(cmd.Context(), addr)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().String("addr", "", "Listen address (default: server.addr)")
	return cmd
}

// doServe runs the HTTP server until shutdown is requested
func (a *app) doServe(ctx context.Context, addr string) error {
	if a.conf.DefaultBackend == "rest" {
		return errors.New("serve needs a local task backend; use --backend sqlite")
	}

	tasks, err := a.openTaskStore(ctx)
	if err != nil {
		return err
	}
	posts, err := a.openPostStore()
	if err != nil {
		_ = tasks.Close()
		return err
	}

	accessLog, err := utils.NewBackgroundLoggerWithEnabled(a.conf.IsBackgroundLoggingEnabled())
	if err != nil {
		utils.Warnf("access log disabled: %v", err)
	}

	srv, err := server.New(server.Options{
		Tasks: tasks,
		Posts: posts,
		Token: a.conf.Server.Token,
		AccessLog: func(format string, args ...interface{}) {
			accessLog.Printf(format, args...)
			utils.Debugf(format, args...)
		},
	})
	if err != nil {
		_ = tasks.Close()
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_ = tasks.Close()
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	httpServer := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	mgr := a.cfg.Shutdown
	if mgr == nil {
		mgr = shutdown.NewManager()
		stop := mgr.NotifySignals()
		defer stop()
	}
	// Cleanups run in reverse: stop accepting requests before the stores close
	mgr.RegisterCleanup("access log", func(context.Context) error {
		accessLog.Close()
		return nil
	})
	mgr.RegisterCleanup("tasks", func(context.Context) error { return tasks.Close() })
	mgr.RegisterCleanup("posts", func(context.Context) error { return posts.Close() })
	mgr.RegisterCleanup("http", httpServer.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		err := httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			mgr.Shutdown("server error")
		}
		close(serveErr)
	}()

	_, _ = fmt.Fprintf(a.stdout, "Serving on http://%s\n", ln.Addr())
	if accessLog.IsEnabled() {
		_, _ = fmt.Fprintf(a.stdout, "Access log: %s\n", accessLog.GetLogPath())
	}
	if a.cfg.OnServe != nil {
		a.cfg.OnServe(ln.Addr().String())
	}

	<-mgr.Context().Done()
	utils.Infof("shutting down: %s", mgr.Reason())

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	err = mgr.Wait(drainCtx)
	if runErr := <-serveErr; runErr != nil {
		return fmt.Errorf("serve: %w", runErr)
	}
	return err
}
