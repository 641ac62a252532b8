package api

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/haolipeng/nft_payload_classifier/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server HTTP 服务器
type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer 创建一个新的 HTTP 服务器
func NewServer(cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	return &Server{
		echo: e,
		addr: net.JoinHostPort(cfg.API.Host, cfg.API.Port),
	}
}

// Start 启动 HTTP 服务器，服务器被关闭时返回nil
func (s *Server) Start() error {
	logrus.Infof("API server listening on %s", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 停止 HTTP 服务器
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// GetEcho 获取Echo实例
func (s *Server) GetEcho() *echo.Echo {
	return s.echo
}

// RegisterClassifyService 注册分类服务
func (s *Server) RegisterClassifyService(cs *ClassifyService) {
	s.echo.POST("/classify", cs.Classify)        // 对载荷分类
	s.echo.GET("/rules", cs.GetRules)            // 获取当前规则
	s.echo.POST("/rules/reload", cs.ReloadRules) // 重新加载规则
	s.echo.GET("/policy", cs.GetPolicy)          // 获取告警策略
	s.echo.PUT("/policy", cs.UpdatePolicy)       // 更新告警策略
	s.echo.GET("/stats", cs.GetStats)            // 获取统计信息
}

// RegisterMetrics 以Prometheus格式导出指标
func (s *Server) RegisterMetrics(g prometheus.Gatherer) {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}
