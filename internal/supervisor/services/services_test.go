// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package services

import (
	"context"
	"errors"
	"net/http"
	stdsync "sync"
	"testing"
	"time"

	"github.com/fieldport/fieldport/internal/sync"
)

type mockServer struct {
	listenErr    error
	shutdownErr  error
	listenGate   chan struct{}
	shutdownDone bool
	mu           stdsync.Mutex
}

func (m *mockServer) ListenAndServe() error {
	if m.listenGate != nil {
		<-m.listenGate
	}
	if m.listenErr != nil {
		return m.listenErr
	}
	return http.ErrServerClosed
}

func (m *mockServer) Shutdown(_ context.Context) error {
	m.mu.Lock()
	m.shutdownDone = true
	m.mu.Unlock()
	if m.listenGate != nil {
		close(m.listenGate)
	}
	return m.shutdownErr
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	server := &mockServer{listenGate: make(chan struct{})}
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	if !server.shutdownDone {
		t.Error("Shutdown not called")
	}
}

func TestHTTPServiceStartupFailure(t *testing.T) {
	server := &mockServer{listenErr: errors.New("address in use")}
	svc := NewHTTPServerService(server, time.Second)

	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("expected startup failure to propagate")
	}
}

type mockLister struct{ customers []string }

func (m *mockLister) ListActiveCustomers(_ context.Context) ([]string, error) {
	return m.customers, nil
}

type mockRefresher struct {
	mu    stdsync.Mutex
	calls []string
}

func (m *mockRefresher) SyncCustomer(_ context.Context, customerUUID string) (*sync.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, customerUUID)
	return &sync.Result{CustomerUUID: customerUUID}, nil
}

func TestRefreshPollerSyncsActiveCustomers(t *testing.T) {
	lister := &mockLister{customers: []string{"cust-1", "cust-2"}}
	refresher := &mockRefresher{}
	svc := NewRefreshPollerService(lister, refresher, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = svc.Serve(ctx)

	refresher.mu.Lock()
	defer refresher.mu.Unlock()
	if len(refresher.calls) < 2 {
		t.Errorf("refreshed %d customers, want at least one full poll of 2", len(refresher.calls))
	}
}

func TestServiceNames(t *testing.T) {
	if got := NewHTTPServerService(&mockServer{}, 0).String(); got != "http-server" {
		t.Errorf("http service name = %q", got)
	}
	if got := NewRefreshPollerService(nil, nil, 0).String(); got != "refresh-poller" {
		t.Errorf("poller name = %q", got)
	}
}
