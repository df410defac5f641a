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

package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Client is the fully resolved echo-client configuration.
type Client struct {
	Host               string
	Port               uint16
	DemuxPerWorkThread bool
	Threads            uint
	Sessions           uint
	BatchSize          uint
	BatchInterval      time.Duration
	BufferSize         int
	ConnectAttempts    uint
	RecvBufferSize     int
	SendBufferSize     int
	NoDelay            bool
	Duration           time.Duration
	LogLevel           string
}

// BindClientFlags registers every echo-client flag on cmd and binds it
// into v, mirroring BindServerFlags for the load-generator side of the
// original's session_manager example tool.
func BindClientFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()

	flags.String("host", "127.0.0.1", "server host to connect to")
	flags.Uint16("port", 0, "server port to connect to (required)")
	flags.Bool("demux-per-work-thread", true, "accepted for CLI parity; not used by the client")
	flags.Uint("threads", uint(defaultSessionThreads()), "accepted for CLI parity; each session runs on its own goroutine")
	flags.Uint("sessions", 1, "total number of connections to establish")
	flags.Uint("batch-size", 1, "connection attempts initiated simultaneously per batch")
	flags.Duration("batch-interval", 500*time.Millisecond, "time between batches (0 = all at once)")
	flags.Int("buffer", 4096, "read/write payload size in bytes")
	flags.Uint("connect-attempts", 1, "connection retry attempts (0 = infinite)")
	flags.Int("sock-recv-buffer", 0, "SO_RCVBUF override in bytes (0 = leave OS default)")
	flags.Int("sock-send-buffer", 0, "SO_SNDBUF override in bytes (0 = leave OS default)")
	flags.Bool("no-delay", false, "set TCP_NODELAY")
	flags.Duration("time", 0, "total run time (0 = run until interrupted)")
	flags.String("log-level", "info", "log level: debug|info|warn|error")

	_ = v.BindPFlags(flags)
}

// ClientFromViper reads every bound client flag back out of v.
func ClientFromViper(v *viper.Viper) Client {
	return Client{
		Host:               v.GetString("host"),
		Port:               uint16(v.GetUint("port")),
		DemuxPerWorkThread: v.GetBool("demux-per-work-thread"),
		Threads:            v.GetUint("threads"),
		Sessions:           v.GetUint("sessions"),
		BatchSize:          v.GetUint("batch-size"),
		BatchInterval:      v.GetDuration("batch-interval"),
		BufferSize:         v.GetInt("buffer"),
		ConnectAttempts:    v.GetUint("connect-attempts"),
		RecvBufferSize:     v.GetInt("sock-recv-buffer"),
		SendBufferSize:     v.GetInt("sock-send-buffer"),
		NoDelay:            v.GetBool("no-delay"),
		Duration:           v.GetDuration("time"),
		LogLevel:           v.GetString("log-level"),
	}
}
