/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command echo-server runs the session-manager-fronted echo TCP server
// described by the session package and manager package, wired together the
// way original_source/src/echo_server/main.cpp assembles its
// session_manager and io_context pool, but with cobra/viper standing in
// for the original's hand-rolled argv parsing.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	appcfg "github.com/mabrarov/echo-server-go/config"
	"github.com/mabrarov/echo-server-go/log"
	"github.com/mabrarov/echo-server-go/manager"
	"github.com/mabrarov/echo-server-go/session"
	"github.com/mabrarov/echo-server-go/slot"
	"github.com/mabrarov/echo-server-go/stats"
	"github.com/mabrarov/echo-server-go/strand"
)

func main() {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "echo-server",
		Short: "TCP echo server with bounded session admission and recycling",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(appcfg.ServerFromViper(v))
		},
	}
	appcfg.BindServerFlags(cmd, v)
	_ = cmd.MarkFlagRequired("port")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg appcfg.Server) error {
	logger := log.NewStderr(cfg.LogLevel)

	svc := slot.NewService()
	defer svc.Shutdown()

	managerStrand := strand.New(256)
	defer managerStrand.Close()

	var factory session.Factory
	if cfg.DemuxPerWorkThread && cfg.SessionThreads > 1 {
		strands := make([]*strand.Strand, cfg.SessionThreads)
		for i := range strands {
			strands[i] = strand.New(256)
			defer strands[i].Close()
		}
		factory = session.NewPooledFactory(svc, strands, cfg.Session, int(cfg.RecycledSessions))
	} else {
		sessionStrand := strand.New(256)
		defer sessionStrand.Close()
		factory = session.NewSimpleFactory(svc, sessionStrand, cfg.Session, int(cfg.RecycledSessions))
	}

	collector := stats.New()
	mgr := manager.New(manager.Config{
		ListenAddr:    net.JoinHostPort("", fmt.Sprintf("%d", cfg.Port)),
		ListenBacklog: cfg.ListenBacklog,
		MaxSessions:   int(cfg.MaxSessions),
		RecycledLimit: int(cfg.RecycledSessions),
		SessionConfig: cfg.Session,
	}, managerStrand, svc, factory, collector, logger)

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(stats.NewPrometheusCollector(collector))
		metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Warn("metrics server exited")
			}
		}()
		defer metricsSrv.Close()
	}

	if err := mgr.Start(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-ctx.Done()
		return stopWithTimeout(mgr, cfg.StopTimeout)
	})

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("echo-server exited with error")
		logger.Info(collector.Snapshot().String())
		return err
	}

	logger.Info(collector.Snapshot().String())
	return nil
}

func stopWithTimeout(mgr *manager.Manager, timeout time.Duration) error {
	done := make(chan error, 1)
	mgr.Stop(func(err error) { done <- err })

	if timeout <= 0 {
		return <-done
	}

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("stop timed out after %s", timeout)
	}
}
