package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"
)

type lifecycleLog struct {
	mu     sync.Mutex
	events []string
}

func (l *lifecycleLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *lifecycleLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.events...)
}

type syncFake struct{ log *lifecycleLog }

func (f syncFake) Start(context.Context) { f.log.add("sync_started") }
func (f syncFake) Stop()                 { f.log.add("sync_stopped") }

func TestServeStopsSyncAfterInFlightRequests(t *testing.T) {
	log := &lifecycleLog{}
	entered := make(chan struct{})
	release := make(chan struct{})
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		log.add("request_done")
		w.WriteHeader(http.StatusOK)
	})}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() {
		served <- serve(ctx, server, listener, syncFake{log: log}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	responded := make(chan error, 1)
	go func() {
		resp, err := http.Post("http://"+listener.Addr().String()+"/v1/refresh", "application/json", nil)
		if err == nil {
			_ = resp.Body.Close()
		}
		responded <- err
	}()

	<-entered
	cancel()
	time.Sleep(50 * time.Millisecond)
	for _, event := range log.Events() {
		if event == "sync_stopped" {
			t.Fatalf("synchronizer stopped while a request was in flight: %v", log.Events())
		}
	}

	close(release)
	if err := <-served; err != nil {
		t.Fatalf("serve() error = %v", err)
	}
	if err := <-responded; err != nil {
		t.Fatalf("in-flight request failed: %v", err)
	}

	events := log.Events()
	if len(events) != 3 || events[len(events)-2] != "request_done" || events[len(events)-1] != "sync_stopped" {
		t.Fatalf("expected the request to finish before the synchronizer stops, got %v", events)
	}
}
