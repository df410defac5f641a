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

// Command echo-client drives sessions connections against an echo-server,
// opening them in batches of batch_size connection attempts paced
// batch_interval apart (spec.md section 6's client batch-pacing control),
// then on each established connection writes and verifies echoed payloads
// until the run duration elapses, mirroring the load-generating role of
// the original's companion client example.
package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appcfg "github.com/mabrarov/echo-server-go/config"
	"github.com/mabrarov/echo-server-go/log"
)

func main() {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "echo-client",
		Short: "Load generator for the echo-server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(appcfg.ClientFromViper(v))
		},
	}
	appcfg.BindClientFlags(cmd, v)
	_ = cmd.MarkFlagRequired("port")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg appcfg.Client) error {
	logger := log.NewStderr(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if cfg.Duration > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, cfg.Duration)
		defer timeoutCancel()
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	var wg sync.WaitGroup
	id := uint(0)
	for started := uint(0); started < cfg.Sessions; {
		batch := cfg.BatchSize
		if batch == 0 || cfg.Sessions-started < batch {
			batch = cfg.Sessions - started
		}

		for i := uint(0); i < batch; i++ {
			wg.Add(1)
			go func(id uint) {
				defer wg.Done()
				if err := runSession(ctx, addr, cfg); err != nil {
					logger.WithError(err).WithFields(log.Fields{"session": id}).Warn("session ended")
				}
			}(id)
			id++
		}
		started += batch

		if started < cfg.Sessions && cfg.BatchInterval > 0 {
			select {
			case <-ctx.Done():
				wg.Wait()
				return nil
			case <-time.After(cfg.BatchInterval):
			}
		}
	}
	wg.Wait()
	return nil
}

// runSession dials one connection (retrying per connect_attempts) then
// repeatedly writes a random buffer-sized payload and verifies it comes
// back unchanged, until ctx is done.
func runSession(ctx context.Context, addr string, cfg appcfg.Client) error {
	conn, err := dialWithRetry(ctx, addr, cfg.ConnectAttempts)
	if err != nil {
		return err
	}
	defer conn.Close()

	if tcp, ok := conn.(*net.TCPConn); ok {
		if cfg.RecvBufferSize > 0 {
			_ = tcp.SetReadBuffer(cfg.RecvBufferSize)
		}
		if cfg.SendBufferSize > 0 {
			_ = tcp.SetWriteBuffer(cfg.SendBufferSize)
		}
		_ = tcp.SetNoDelay(cfg.NoDelay)
	}

	buf := make([]byte, cfg.BufferSize)
	echo := make([]byte, cfg.BufferSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		rand.Read(buf)
		if _, err := conn.Write(buf); err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if _, err := readFull(conn, echo); err != nil {
			return err
		}
		if !bytes.Equal(buf, echo) {
			return fmt.Errorf("echo mismatch")
		}
	}
}

func dialWithRetry(ctx context.Context, addr string, attempts uint) (net.Conn, error) {
	var d net.Dialer
	var lastErr error
	for i := uint(0); attempts == 0 || i < attempts; i++ {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return nil, lastErr
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
