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

// Package config binds echo-server/echo-client CLI flags to a viper
// instance, the way the teacher's config package layers cobra flags under
// a viper-backed source, scoped down from the teacher's multi-component
// registry to the flat flag set this module needs. Flag names and
// defaults are grounded in original_source/src/echo_server/config.cpp's
// *_option_name constants.
package config

import (
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mabrarov/echo-server-go/session"
)

// Server is the fully resolved server configuration, read out of viper
// after cobra has parsed flags (and any bound environment variables).
type Server struct {
	Port                  uint16
	SessionManagerThreads uint
	SessionThreads        uint
	DemuxPerWorkThread    bool
	StopTimeout           time.Duration
	MaxSessions           uint
	RecycledSessions      uint
	ListenBacklog         int
	Session               session.Config
	MetricsAddr           string
	LogLevel              string
}

// BindServerFlags registers every server flag on cmd and binds it into v
// under the same name, so ServerFromViper can read it back uniformly
// regardless of flag, env, or config-file origin.
func BindServerFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()

	flags.Uint16("port", 0, "TCP port to listen on (required)")
	flags.Uint("session-manager-threads", 1, "accepted for CLI parity; the session manager's strand always runs on one goroutine")
	flags.Uint("session-threads", uint(defaultSessionThreads()), "number of threads available to session strands")
	flags.Bool("demux-per-work-thread", true, "pin one executor per session thread instead of sharing one")
	flags.Duration("stop-timeout", 60*time.Second, "time allowed for an orderly stop before force-quitting")
	flags.Uint("max-sessions", 10000, "maximum number of concurrently active sessions")
	flags.Uint("recycled-sessions", 100, "maximum number of sessions kept in the recycle pool")
	flags.Int("listen-backlog", 6, "advisory listen backlog (OS-managed; see DESIGN.md)")
	flags.Int("buffer", 4096, "per-session cyclic buffer size in bytes")
	flags.Duration("inactivity-timeout", 0, "stop a session after this long without successful I/O (0 = never)")
	flags.Int("max-transfer", 4096, "maximum bytes per single asynchronous read/write")
	flags.Int("sock-recv-buffer", 0, "SO_RCVBUF override in bytes (0 = leave OS default)")
	flags.Int("sock-send-buffer", 0, "SO_SNDBUF override in bytes (0 = leave OS default)")
	flags.String("sock-no-delay", "leave", "TCP_NODELAY: leave|on|off")
	flags.String("metrics-addr", "", "address to serve Prometheus metrics on (empty = disabled)")
	flags.String("log-level", "info", "log level: debug|info|warn|error")

	_ = v.BindPFlags(flags)
}

// ServerFromViper reads every bound server flag back out of v.
func ServerFromViper(v *viper.Viper) Server {
	return Server{
		Port:                  uint16(v.GetUint("port")),
		SessionManagerThreads: v.GetUint("session-manager-threads"),
		SessionThreads:        v.GetUint("session-threads"),
		DemuxPerWorkThread:    v.GetBool("demux-per-work-thread"),
		StopTimeout:           v.GetDuration("stop-timeout"),
		MaxSessions:           v.GetUint("max-sessions"),
		RecycledSessions:      v.GetUint("recycled-sessions"),
		ListenBacklog:         v.GetInt("listen-backlog"),
		Session: session.Config{
			BufferSize:        v.GetInt("buffer"),
			MaxTransferSize:   v.GetInt("max-transfer"),
			InactivityTimeout: v.GetDuration("inactivity-timeout"),
			RecvBufferSize:    v.GetInt("sock-recv-buffer"),
			SendBufferSize:    v.GetInt("sock-send-buffer"),
			NoDelay:           parseTriState(v.GetString("sock-no-delay")),
		},
		MetricsAddr: v.GetString("metrics-addr"),
		LogLevel:    v.GetString("log-level"),
	}
}

func parseTriState(s string) session.TriState {
	switch s {
	case "on":
		return session.On
	case "off":
		return session.Off
	default:
		return session.Leave
	}
}

func defaultSessionThreads() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 2
}
