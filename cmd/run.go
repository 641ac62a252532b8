package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/haolipeng/nft_payload_classifier/pkg/api"
	"github.com/haolipeng/nft_payload_classifier/pkg/config"
	"github.com/haolipeng/nft_payload_classifier/pkg/metrics"
	"github.com/haolipeng/nft_payload_classifier/pkg/pipeline"
	"github.com/haolipeng/nft_payload_classifier/pkg/processor"
	"github.com/haolipeng/nft_payload_classifier/pkg/sink"
	"github.com/haolipeng/nft_payload_classifier/pkg/source"
)

func newRunCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "回放数据源并输出分类结果",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}

			// 初始化日志
			if err := InitLogger(cfg); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "配置文件")
	return cmd
}

// buildSink 分类结果写入JSON文件，配置了告警pcap时同时写入告警帧
func buildSink(cfg *config.Config) (pipeline.Sink, error) {
	jsonSink, err := sink.NewJSONSink(cfg.Output.Filename)
	if err != nil {
		return nil, err
	}
	if cfg.Output.AlertPcapFile == "" {
		return jsonSink, nil
	}

	pcapSink, err := sink.NewPcapSink(cfg.Output.AlertPcapFile)
	if err != nil {
		return nil, err
	}
	return sink.NewMultiSink(jsonSink, pcapSink), nil
}

// run 运行流水线，直到数据源读取完毕或ctx被取消
func run(ctx context.Context, cfg *config.Config) error {
	logrus.Info("Starting nft payload classifier...")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(reg)

	// 创建pipeline
	p := pipeline.NewPipeline()
	if err := p.SetConfig(cfg); err != nil {
		return err
	}

	engine, err := processor.NewRuleEngineProcessor(cfg, collector)
	if err != nil {
		return err
	}

	src, err := source.New(cfg)
	if err != nil {
		return err
	}
	p.SetSource(src)

	// 添加载荷提取处理器
	if err := p.AddProcessor(processor.NewPayloadExtractor(cfg.Pipeline.WorkerCount, cfg.Pipeline.BufferSize, cfg.Source.Port)); err != nil {
		return fmt.Errorf("add payload extractor failed: %w", err)
	}
	// 添加规则引擎处理器
	if err := p.AddProcessor(engine); err != nil {
		return fmt.Errorf("add rule engine failed: %w", err)
	}

	// 设置输出
	out, err := buildSink(cfg)
	if err != nil {
		return fmt.Errorf("failed to create sink: %w", err)
	}
	p.SetSink(out)

	// 启动pipeline
	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	logrus.Info("Pipeline started successfully")

	// 流水线启动后处理器的指标才确定，此时再对外提供接口
	var server *api.Server
	if cfg.API.Enable {
		server = api.NewServer(cfg)
		server.RegisterClassifyService(api.NewClassifyService(engine, p))
		server.RegisterMetrics(reg)
		go func() {
			if err := server.Start(); err != nil {
				logrus.Errorf("API server error: %v", err)
			}
		}()
	}

	select {
	case <-p.Done():
		logrus.Info("Source exhausted, all packets classified")
	case <-ctx.Done():
		logrus.Info("Received shutdown signal, shutting down...")
	}

	// 优雅退出
	if err := p.Stop(); err != nil {
		logrus.Errorf("Error stopping pipeline: %v", err)
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			logrus.Errorf("Error stopping API server: %v", err)
		}
	}

	logrus.WithFields(logrus.Fields(p.GetStats())).Info("Shutdown complete")
	return nil
}
