// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func reserveListenAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitForListen(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server on %s never came up", addr)
}

func testConfig(addr string) ServerConfig {
	cfg := DefaultServerConfig(addr, "")
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestNewManagerRequiresHandlerAndAddr(t *testing.T) {
	_, err := NewManager(testConfig("127.0.0.1:0"), nil, nil)
	require.Error(t, err)

	_, err = NewManager(testConfig(""), http.NotFoundHandler(), nil)
	require.Error(t, err)
}

func TestShutdownBeforeStart(t *testing.T) {
	m, err := NewManager(testConfig("127.0.0.1:0"), http.NotFoundHandler(), nil)
	require.NoError(t, err)

	err = m.Shutdown(context.Background())
	require.ErrorIs(t, err, ErrManagerNotStarted)
}

func TestStartServesAndShutsDownCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)
	defer http.DefaultClient.CloseIdleConnections()

	addr := reserveListenAddr(t)
	m, err := NewManager(testConfig(addr), http.NotFoundHandler(), nil)
	require.NoError(t, err)

	hookOrder := make([]string, 0, 2)
	m.RegisterShutdownHook("first", func(context.Context) error {
		hookOrder = append(hookOrder, "first")
		return nil
	})
	m.RegisterShutdownHook("second", func(context.Context) error {
		hookOrder = append(hookOrder, "second")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	waitForListen(t, addr)

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)

	// Hooks run in reverse registration order.
	require.Equal(t, []string{"second", "first"}, hookOrder)
}

func TestShutdownIsIdempotent(t *testing.T) {
	addr := reserveListenAddr(t)
	m, err := NewManager(testConfig(addr), http.NotFoundHandler(), nil)
	require.NoError(t, err)

	hookCalls := 0
	m.RegisterShutdownHook("counter", func(context.Context) error {
		hookCalls++
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	waitForListen(t, addr)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 1, hookCalls)

	// Second shutdown must be a silent no-op.
	require.NoError(t, m.Shutdown(context.Background()))
	require.Equal(t, 1, hookCalls)
}

func TestShutdownReportsHookErrors(t *testing.T) {
	addr := reserveListenAddr(t)
	m, err := NewManager(testConfig(addr), http.NotFoundHandler(), nil)
	require.NoError(t, err)

	boom := errors.New("journal close failed")
	m.RegisterShutdownHook("journal", func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	waitForListen(t, addr)

	cancel()
	require.ErrorIs(t, <-done, boom)
}

func TestDoubleStartRejected(t *testing.T) {
	addr := reserveListenAddr(t)
	m, err := NewManager(testConfig(addr), http.NotFoundHandler(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	waitForListen(t, addr)

	require.Error(t, m.Start(context.Background()))

	cancel()
	require.NoError(t, <-done)
}
