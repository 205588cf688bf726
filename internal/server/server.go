/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package server assembles every other internal package into the
// running Broker: it owns the TCP and WebSocket accept loops, wires
// the persistence registry lookups into the session manager, and
// drives the graceful shutdown sequence described in spec §5.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yunqi/lighthouse/config"
	"github.com/yunqi/lighthouse/internal/bridge"
	"github.com/yunqi/lighthouse/internal/cluster"
	"github.com/yunqi/lighthouse/internal/goroutine"
	"github.com/yunqi/lighthouse/internal/hooks"
	"github.com/yunqi/lighthouse/internal/offline"
	"github.com/yunqi/lighthouse/internal/persistence"
	persistsession "github.com/yunqi/lighthouse/internal/persistence/session"
	persistsub "github.com/yunqi/lighthouse/internal/persistence/subscription"
	"github.com/yunqi/lighthouse/internal/pipeline"
	"github.com/yunqi/lighthouse/internal/retained"
	"github.com/yunqi/lighthouse/internal/session"
	"github.com/yunqi/lighthouse/internal/transport"
	"github.com/yunqi/lighthouse/internal/xlog"
	"github.com/yunqi/lighthouse/internal/xtrace"
)

// Broker is one running node: every listener, the publish pipeline,
// the session manager, and the optional cluster and bridge layers.
type Broker struct {
	cfg *config.Config
	log *xlog.Log

	pipeline *pipeline.Pipeline
	hooks    *hooks.Registry
	sessions *session.Manager
	cluster  *cluster.Layer
	bridges  []*bridge.Bridge

	tracer trace.Tracer

	tcpListener net.Listener
	tlsListener net.Listener
	wsServer    *http.Server
	upgrader    websocket.Upgrader

	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// New builds a Broker from cfg, wiring the persistence registry,
// publish pipeline, session manager, and — when configured — the
// cluster and bridge layers, exactly the way the teacher's server.init
// wired its own session/subscription stores.
func New(cfg *config.Config, hookRegistry *hooks.Registry) (*Broker, error) {
	log := xlog.LoggerModule("server")

	sessionStore, err := buildSessionStore(&cfg.Persistence.Session)
	if err != nil {
		return nil, err
	}
	subscriptionStore, err := buildSubscriptionStore(&cfg.Persistence.Subscription)
	if err != nil {
		return nil, err
	}
	retainedStore, err := buildRetainedStore(&cfg.Persistence.Retained)
	if err != nil {
		return nil, err
	}
	offlineQueue, err := buildOfflineQueue(&cfg.Persistence.Offline)
	if err != nil {
		return nil, err
	}

	if hookRegistry == nil {
		hookRegistry = hooks.NewRegistry()
	}

	pipe := pipeline.New(retainedStore, hookRegistry, cfg.Mqtt.MaxMessageSize)

	var clusterLayer *cluster.Layer
	var gossip session.SubscriptionGossip
	if cfg.Cluster.Enabled() {
		clusterLayer = cluster.New(cfg.Cluster, pipe, retainedStore)
		pipe.SetForwarder(clusterLayer)
		gossip = clusterLayer
	}

	sessions := session.NewManager(session.Deps{
		Config:            &cfg.Mqtt,
		Pipeline:          pipe,
		Hooks:             hookRegistry,
		SessionStore:      sessionStore,
		SubscriptionStore: subscriptionStore,
		OfflineQueue:      offlineQueue,
		Gossip:            gossip,
	})

	bridges := make([]*bridge.Bridge, 0, len(cfg.Bridges))
	for _, bc := range cfg.Bridges {
		br := bridge.New(bc, pipe, retainedStore)
		sessions.AddExternalRecipient(br)
		bridges = append(bridges, br)
	}

	b := &Broker{
		cfg:      cfg,
		log:      log,
		pipeline: pipe,
		hooks:    hookRegistry,
		sessions: sessions,
		cluster:  clusterLayer,
		bridges:  bridges,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{"mqtt"},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
	}
	return b, nil
}

func buildSessionStore(cfg *config.StoreConfig) (persistsession.Store, error) {
	factory, ok := persistence.GetSessionStore(storeType(cfg))
	if !ok {
		return nil, fmt.Errorf("server: unknown session store %q", cfg.Type)
	}
	return factory(cfg)
}

func buildSubscriptionStore(cfg *config.StoreConfig) (persistsub.Store, error) {
	factory, ok := persistence.GetSubscriptionStore(storeType(cfg))
	if !ok {
		return nil, fmt.Errorf("server: unknown subscription store %q", cfg.Type)
	}
	return factory(cfg)
}

func buildRetainedStore(cfg *config.StoreConfig) (retained.Store, error) {
	factory, ok := persistence.GetRetainedStore(storeType(cfg))
	if !ok {
		return nil, fmt.Errorf("server: unknown retained store %q", cfg.Type)
	}
	return factory(cfg)
}

func buildOfflineQueue(cfg *config.StoreConfig) (offline.Queue, error) {
	factory, ok := persistence.GetOfflineQueue(storeType(cfg))
	if !ok {
		return nil, fmt.Errorf("server: unknown offline queue %q", cfg.Type)
	}
	return factory(cfg)
}

func storeType(cfg *config.StoreConfig) string {
	if cfg.Type == "" {
		return "memory"
	}
	return cfg.Type
}

// ListenAndServe binds the configured plain TCP and TLS listeners and
// starts the cluster and bridge layers. It returns once every listener
// is bound; accept loops run in the background. The WebSocket listener
// is started separately by ListenAndServeWebsocket.
func (b *Broker) ListenAndServe() error {
	b.tracer = xtrace.Tracer()

	if b.cfg.Mqtt.Port > 0 {
		addr := fmt.Sprintf("%s:%d", b.cfg.Mqtt.BindAddress, b.cfg.Mqtt.Port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("server: listen tcp %s: %w", addr, err)
		}
		b.tcpListener = ln
		b.log.Info("listening for mqtt", zap.String("addr", addr))
		b.wg.Add(1)
		goroutine.Go(func() { defer b.wg.Done(); b.acceptLoop(ln, transport.NewTCPConn) })
	}

	if b.cfg.Mqtt.UseTLS && b.cfg.Mqtt.TLSPort > 0 {
		cert, err := tls.LoadX509KeyPair(b.cfg.Mqtt.ServerCertificate, b.cfg.Mqtt.ServerCertificate)
		if err != nil {
			return fmt.Errorf("server: load tls certificate: %w", err)
		}
		tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
		if b.cfg.Mqtt.RequireClientCertificate {
			tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		}
		addr := fmt.Sprintf("%s:%d", b.cfg.Mqtt.BindAddress, b.cfg.Mqtt.TLSPort)
		ln, err := tls.Listen("tcp", addr, tlsCfg)
		if err != nil {
			return fmt.Errorf("server: listen tls %s: %w", addr, err)
		}
		b.tlsListener = ln
		b.log.Info("listening for mqtt over tls", zap.String("addr", addr))
		b.wg.Add(1)
		goroutine.Go(func() { defer b.wg.Done(); b.acceptLoop(ln, transport.NewTCPConn) })
	}

	if b.cluster != nil {
		if err := b.cluster.Start(); err != nil {
			return fmt.Errorf("server: start cluster layer: %w", err)
		}
	}

	for _, br := range b.bridges {
		br.Start()
	}

	return nil
}

func (b *Broker) acceptLoop(ln net.Listener, wrap func(net.Conn) transport.Conn) {
	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := time.Second; tempDelay > max {
					tempDelay = max
				}
				time.Sleep(tempDelay)
				continue
			}
			return
		}
		tempDelay = 0
		goroutine.Go(func() { b.sessions.HandleConnection(wrap(conn)) })
	}
}

// ServeWebsocket upgrades r to a WebSocket connection and runs the
// ordinary CONNECT handshake over it; mount it on an http.ServeMux at
// the configured path.
func (b *Broker) ServeWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	b.sessions.HandleConnection(transport.NewWSConn(ws))
}

// ListenAndServeWebsocket starts an HTTP server on addr serving MQTT
// over WebSocket at path.
func (b *Broker) ListenAndServeWebsocket(addr, path string) error {
	mux := http.NewServeMux()
	mux.HandleFunc(path, b.ServeWebsocket)
	b.wsServer = &http.Server{Addr: addr, Handler: mux}
	b.log.Info("listening for mqtt over websocket", zap.String("addr", addr), zap.String("path", path))
	b.wg.Add(1)
	goroutine.Go(func() {
		defer b.wg.Done()
		if err := b.wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			b.log.Error("websocket server stopped", zap.Error(err))
		}
	})
	return nil
}

// Sessions exposes the session manager, chiefly for tests and metrics.
func (b *Broker) Sessions() *session.Manager { return b.sessions }

// TCPAddr returns the bound address of the plain TCP listener, or nil
// if it was never started (chiefly useful in tests that bind :0).
func (b *Broker) TCPAddr() net.Addr {
	if b.tcpListener == nil {
		return nil
	}
	return b.tcpListener.Addr()
}

// Shutdown runs the sequence spec §5 prescribes: stop accepting new
// connections, stop bridges and announce NodeLeave, wait for the accept
// loops to exit (at most until ctx is done), then force-close whatever
// sessions remain.
func (b *Broker) Shutdown(ctx context.Context) error {
	var err error
	b.shutdownOnce.Do(func() {
		if b.tcpListener != nil {
			_ = b.tcpListener.Close()
		}
		if b.tlsListener != nil {
			_ = b.tlsListener.Close()
		}
		if b.wsServer != nil {
			_ = b.wsServer.Shutdown(ctx)
		}

		for _, br := range b.bridges {
			br.Stop()
		}
		if b.cluster != nil {
			b.cluster.Stop()
		}

		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}

		b.sessions.CloseAll()
		goroutine.Release()
	})
	return err
}
