package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-netpipe/internal/core/bandwidth"
)

// serveMetrics 在 addr 上暴露 /metrics，ctx 结束时关闭
func serveMetrics(ctx context.Context, c *bandwidth.Counter, addr string) (net.Addr, error) {
	if c == nil {
		return nil, errors.New("流量统计未启用")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		bandwidth.NewCollector(c),
		collectors.NewGoCollector(),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("监听指标地址失败: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("指标服务退出", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Info("指标服务已启动", "addr", ln.Addr().String())
	return ln.Addr(), nil
}
