/*
 * Copyright 2024 The Thumbcache Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package main is the main package for the thumbcached daemon
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lanternmedia/thumbcache/pkg/cache/registration"
	"github.com/lanternmedia/thumbcache/pkg/cache/tiered"
	"github.com/lanternmedia/thumbcache/pkg/config"
	"github.com/lanternmedia/thumbcache/pkg/fetch"
	"github.com/lanternmedia/thumbcache/pkg/handlers"
	"github.com/lanternmedia/thumbcache/pkg/observability/logging"
	"github.com/lanternmedia/thumbcache/pkg/observability/metrics"
	"github.com/lanternmedia/thumbcache/pkg/observability/tracing"
	"github.com/lanternmedia/thumbcache/pkg/runtime"
)

const (
	applicationName    = "thumbcached"
	applicationVersion = "0.9.0"
)

const cacheName = "default"

func main() {
	runtime.ApplicationName = applicationName
	runtime.ApplicationVersion = applicationVersion

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(applicationName, applicationVersion, args)
	if err != nil {
		if errors.Is(err, config.ErrPrintedVersion) {
			return nil
		}
		printUsage()
		return err
	}

	log := logging.New(&logging.Options{
		LogFile:    cfg.Logging.LogFile,
		LogLevel:   cfg.Logging.LogLevel,
		InstanceID: cfg.Main.InstanceID,
	})
	defer log.Close()

	metrics.Init()

	if cfg.Tracing.Exporter == "stdout" {
		flush, err := tracing.RegisterStdout(cfg.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer flush(context.Background())
	}

	mem := registration.NewMemoryTier(cacheName, cfg.Cache, log)
	disk, err := registration.NewPersistentTier(cacheName, cfg.Cache, log)
	if err != nil {
		return err
	}

	tc := tiered.New(cacheName, mem, disk, log)
	if err := tc.Connect(); err != nil {
		return err
	}
	defer tc.Close()

	co := fetch.NewCoordinator(log)
	client := &http.Client{Timeout: cfg.Frontend.OriginTimeout}
	h := handlers.New(tc, co, client, log)

	addr := net.JoinHostPort(cfg.Frontend.ListenAddress, strconv.Itoa(cfg.Frontend.ListenPort))
	server := &http.Server{
		Addr:    addr,
		Handler: h.Router(cfg.Metrics.Enabled),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("frontend listening", logging.Pairs{"address": addr,
			"version": applicationVersion, "cacheProvider": cfg.Cache.ProviderType})
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", logging.Pairs{"signal": sig.String()})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
