package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/haolipeng/nft_payload_classifier/pkg/config"
	"github.com/haolipeng/nft_payload_classifier/pkg/metrics"
	"github.com/haolipeng/nft_payload_classifier/pkg/types"
	"github.com/sirupsen/logrus"
)

// 流水线状态
const (
	StatusInitialized = "initialized"
	StatusStarting    = "starting"
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusStopping    = "stopping"
	StatusStopped     = "stopped"
	StatusFailed      = "failed"
)

// 超时时间
var (
	ReadyTimeout = 10 * time.Second
	StopTimeout  = 30 * time.Second
)

type pipeline struct {
	source     Source
	processors []Processor
	sink       Sink
	running    bool
	mu         sync.Mutex
	errChan    chan error
	status     string
	metrics    map[string]*metrics.ProcessorMetrics
	config     *config.Config
	startTime  time.Time
	cancel     context.CancelFunc
	done       chan struct{}
	wg         sync.WaitGroup // 用于跟踪所有goroutine
}

func NewPipeline() Pipeline {
	return &pipeline{
		processors: make([]Processor, 0),
		metrics:    make(map[string]*metrics.ProcessorMetrics),
		status:     StatusInitialized,
		done:       make(chan struct{}),
	}
}

func (p *pipeline) AddProcessor(processor Processor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("cannot add processor while pipeline is running")
	}

	p.processors = append(p.processors, processor)
	// 按Stage排序处理器
	sort.SliceStable(p.processors, func(i, j int) bool {
		return p.processors[i].Stage() < p.processors[j].Stage()
	})

	return nil
}

func (p *pipeline) SetSource(source Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = source
}

func (p *pipeline) SetSink(sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

func (p *pipeline) setStatus(status string) {
	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
}

// fail 启动失败时取消已启动的goroutine
func (p *pipeline) fail(cancel context.CancelFunc, err error) error {
	cancel()
	p.wg.Wait()
	p.mu.Lock()
	p.running = false
	p.status = StatusFailed
	p.mu.Unlock()
	return err
}

func (p *pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return types.NewPipelineError("start", fmt.Errorf("pipeline already running"))
	}
	if p.source == nil || p.sink == nil {
		p.mu.Unlock()
		return types.NewPipelineError("start", fmt.Errorf("source and sink must be set"))
	}

	// 重置 WaitGroup
	p.wg = sync.WaitGroup{}

	// 设置状态为正在启动
	p.running = true
	p.startTime = time.Now()
	p.status = StatusStarting
	p.metrics = make(map[string]*metrics.ProcessorMetrics)
	p.errChan = make(chan error, 100)
	p.done = make(chan struct{})
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	// 为每个处理器初始化指标对象
	for _, proc := range p.processors {
		m := &metrics.ProcessorMetrics{}
		p.metrics[proc.Name()] = m
		if aware, ok := proc.(metricsAware); ok {
			aware.SetMetrics(m)
		}
	}
	processors := append([]Processor(nil), p.processors...)
	errChan := p.errChan
	done := p.done
	p.mu.Unlock()

	logrus.Info("Starting pipeline")

	// 启动错误处理goroutine
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.handleErrors(ctx, errChan)
	}()

	// 1. 首先检查所有处理器是否就绪
	processorReady := make(chan error, 1)
	go func() {
		for _, processor := range processors {
			// 检查处理器的内部状态
			if err := processor.CheckReady(); err != nil {
				processorReady <- fmt.Errorf("processor %s not ready: %w", processor.Name(), err)
				return
			}
		}
		processorReady <- nil
	}()

	// 2. 等待处理器就绪，设置超时
	select {
	case err := <-processorReady:
		if err != nil {
			logrus.Error(err)
			return p.fail(cancel, types.NewPipelineError("start", err))
		}
		logrus.Debug("All processors are ready")
	case <-time.After(ReadyTimeout):
		return p.fail(cancel, types.NewPipelineError("start", fmt.Errorf("timeout waiting for processors to be ready")))
	}

	// 3. 前一个stage阶段处理器的处理结果直接传递给下一个stage阶段的处理器
	input := p.source.Output()
	for _, proc := range processors {
		logrus.Debugf("Starting processor at stage: %v", proc.Stage())
		out, err := proc.Process(ctx, input, &p.wg)
		if err != nil {
			logrus.Errorf("Failed to start processor at stage %v: %v", proc.Stage(), err)
			return p.fail(cancel, types.NewPipelineError(proc.Stage().String(), err))
		}
		input = out
	}

	//添加日志表示处理器启动成功
	logrus.Info("All processors have started successfully")

	// 4. 处理器就绪后，再启动sink
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(done)
		if err := p.sink.Consume(ctx, input); err != nil {
			logrus.Errorf("Sink error: %v", err)
			p.report(errChan, types.NewPipelineError("sink", err))
		}
	}()

	// 5. 等待sink就绪
	select {
	case <-p.sink.Ready():
		logrus.Debug("Sink is ready")
	case <-time.After(ReadyTimeout):
		return p.fail(cancel, types.NewPipelineError("start", fmt.Errorf("timeout waiting for sink to be ready")))
	}

	// 6. 最后启动数据源，开始数据流转
	if err := p.source.Start(ctx, &p.wg); err != nil {
		logrus.Errorf("Failed to start source: %v", err)
		return p.fail(cancel, types.NewPipelineError("source", err))
	}

	p.setStatus(StatusRunning)
	logrus.Info("Pipeline is now running")

	// sink结束后标记为完成
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case <-done:
			p.mu.Lock()
			if p.status == StatusRunning {
				p.status = StatusCompleted
			}
			p.mu.Unlock()
		case <-ctx.Done():
		}
	}()

	return nil
}

// report 非阻塞地上报错误
func (p *pipeline) report(errChan chan<- error, err error) {
	select {
	case errChan <- err:
	default:
		logrus.Warnf("Error channel full, dropping error: %v", err)
	}
}

func (p *pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}

	// 1. 先设置状态，防止重复停止
	p.running = false
	p.status = StatusStopping
	cancel := p.cancel
	processors := append([]Processor(nil), p.processors...)
	p.mu.Unlock()

	logrus.Info("Pipeline stopping...")

	// 2. 取消上下文，通知所有goroutine退出
	cancel()

	// 3. 等待所有goroutine完成
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		logrus.Info("All processors completed gracefully")
	case <-time.After(StopTimeout):
		logrus.Warn("Timeout waiting for processors to complete")
		err = types.NewPipelineError("stop", fmt.Errorf("timeout waiting for processors to complete"))
	}

	// 4. 清理处理器资源
	for _, processor := range processors {
		if cleaner, ok := processor.(interface{ Cleanup() error }); ok {
			if err := cleaner.Cleanup(); err != nil {
				logrus.Errorf("Error cleaning up processor %s: %v", processor.Name(), err)
			}
		}
	}

	p.setStatus(StatusStopped)
	logrus.Info("Pipeline stopped and cleaned up")
	return err
}

func (p *pipeline) handleErrors(ctx context.Context, errChan <-chan error) {
	logrus.Debug("Starting error handler")
	for {
		select {
		case err := <-errChan:
			logrus.Errorf("Pipeline error: %v", err)
		case <-ctx.Done():
			logrus.Debug("Context cancelled, stopping error handler")
			return
		}
	}
}

// GetStats 返回运行状态和各处理器的指标
func (p *pipeline) GetStats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make(map[string]interface{}, len(p.metrics))
	for name, m := range p.metrics {
		stats[name] = m.GetStats()
	}

	uptime := time.Duration(0)
	if !p.startTime.IsZero() {
		uptime = time.Since(p.startTime)
	}

	result := map[string]interface{}{
		"status":     p.status,
		"uptime":     uptime.String(),
		"processors": len(p.processors),
		"metrics":    stats,
	}
	if src, ok := p.source.(sourceStats); ok {
		result["source"] = src.GetStats().GetStats()
	}
	switch out := p.sink.(type) {
	case sinkStats:
		result["sink"] = map[string]interface{}{out.Name(): out.GetStats().GetStats()}
	case sinkStatsReporter:
		result["sink"] = out.GetStats()
	}
	return result
}

// GetMetrics 实现Pipeline接口的GetMetrics方法
func (p *pipeline) GetMetrics() map[string]*metrics.ProcessorMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// SetConfig 实现Pipeline接口的SetConfig方法
func (p *pipeline) SetConfig(cfg *config.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return types.NewPipelineError("config", fmt.Errorf("cannot set config while pipeline is running"))
	}

	if err := cfg.Validate(); err != nil {
		return types.NewPipelineError("config", err)
	}

	p.config = cfg
	return nil
}

// Status 实现Pipeline接口的Status方法
func (p *pipeline) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
