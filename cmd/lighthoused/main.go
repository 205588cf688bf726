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

// Command lighthoused wires a Broker from a hardcoded config and runs
// it until interrupted. Config loading is deliberately out of scope
// here: a real deployment builds config.Config from its own source
// (flags, a file, env vars) and calls server.New directly, the same
// way this file does.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yunqi/lighthouse/config"
	"github.com/yunqi/lighthouse/internal/server"
	"github.com/yunqi/lighthouse/internal/xlog"
)

func main() {
	var (
		tcpAddr = flag.Int("port", 1883, "mqtt tcp port")
		wsAddr  = flag.String("ws", ":8083", "mqtt websocket listen address")
		wsPath  = flag.String("ws-path", "/mqtt", "mqtt websocket path")
	)
	flag.Parse()

	log := xlog.LoggerModule("main")

	cfg := defaultConfig(*tcpAddr)
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	broker, err := server.New(cfg, nil)
	if err != nil {
		log.Fatal("failed to build broker", zap.Error(err))
	}

	if err := broker.ListenAndServe(); err != nil {
		log.Fatal("failed to start broker", zap.Error(err))
	}
	if err := broker.ListenAndServeWebsocket(*wsAddr, *wsPath); err != nil {
		log.Fatal("failed to start websocket listener", zap.Error(err))
	}

	log.Info("lighthouse broker started", zap.Int("tcp_port", *tcpAddr), zap.String("ws_addr", *wsAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := broker.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown did not complete cleanly", zap.Error(err))
	}
}

func defaultConfig(tcpPort int) *config.Config {
	return &config.Config{
		Mqtt: config.Mqtt{
			BindAddress:            "0.0.0.0",
			Port:                   tcpPort,
			AllowAnonymous:         true,
			EnableRetainedMessages: true,
			MaxMessageSize:         268435455,
			ConnectionTimeout:      30 * time.Second,
		},
		Persistence: config.Persistence{
			Session:      config.StoreConfig{Type: "memory"},
			Subscription: config.StoreConfig{Type: "memory"},
			Retained:     config.StoreConfig{Type: "memory"},
			Offline:      config.StoreConfig{Type: "memory"},
		},
	}
}
