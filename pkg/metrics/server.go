// Copyright 2025 Molt Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"net/http"
	"time"

	gometrics "github.com/hashicorp/go-metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/molthq/molt/pkg/log"
)

// MetricsConfig controls the standalone metrics listener.
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Addr        string `mapstructure:"addr"`
	ServiceName string `mapstructure:"serviceName"`
}

// SetDefaults fills missing metrics configuration values.
func (c *MetricsConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":9090"
	}
	if c.ServiceName == "" {
		c.ServiceName = "molt"
	}
}

// Server exposes a prometheus registry on its own listener and keeps an
// in-memory go-metrics sink for interval measurements.
type Server struct {
	config   MetricsConfig
	registry *prometheus.Registry
	sink     *gometrics.InmemSink
	httpSrv  *http.Server
}

// NewServer builds the metrics server and installs the global go-metrics
// instance backed by the in-memory sink.
func NewServer(config MetricsConfig) *Server {
	config.SetDefaults()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sink := gometrics.NewInmemSink(10*time.Second, time.Minute)
	if _, err := gometrics.NewGlobal(gometrics.DefaultConfig(config.ServiceName), sink); err != nil {
		log.Warnw("failed to install global metrics", "error", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &Server{
		config:   config,
		registry: registry,
		sink:     sink,
		httpSrv: &http.Server{
			Addr:              config.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// GetRegistry returns the prometheus registry for collector registration.
func (s *Server) GetRegistry() *prometheus.Registry {
	return s.registry
}

// GetSink returns the in-memory go-metrics sink.
func (s *Server) GetSink() *gometrics.InmemSink {
	return s.sink
}

// Start serves /metrics until Stop is called. It is a no-op when disabled.
func (s *Server) Start() error {
	if !s.config.Enabled {
		return nil
	}
	log.Infow("metrics server listening", "addr", s.config.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
