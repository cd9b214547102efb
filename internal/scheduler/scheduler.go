package scheduler

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/LJTian/HeadlineHub/internal/aggregator"
	"github.com/robfig/cron/v3"
)

// Runner 执行一轮聚合，由 aggregator.Aggregator 实现
type Runner interface {
	Run(ctx context.Context, listPath string) (aggregator.Stats, error)
}

// Scheduler 按 cron 表达式周期执行聚合；上一轮未结束时跳过本轮，不会并行
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	listPath string
	ctx      context.Context
	cancel   context.CancelFunc
}

// New 创建调度器；parent 被取消或调用 Stop 时，进行中的聚合随之取消
func New(parent context.Context, spec string, runner Runner, listPath string) (*Scheduler, error) {
	logger := cron.VerbosePrintfLogger(log.New(os.Stderr, "cron: ", log.LstdFlags))
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	ctx, cancel := context.WithCancel(parent)
	s := &Scheduler{
		cron:     c,
		runner:   runner,
		listPath: listPath,
		ctx:      ctx,
		cancel:   cancel,
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// Start 启动定时任务；startupDelay > 0 时延迟执行首轮，等于 0 不做首轮
func (s *Scheduler) Start(startupDelay time.Duration) {
	s.cron.Start()
	if startupDelay > 0 {
		time.AfterFunc(startupDelay, func() {
			go s.runOnce()
		})
	}
}

// Stop 停止调度并取消进行中的抓取；返回的 context 在进行中的任务结束后关闭
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce() error {
	_, err := s.runner.Run(s.ctx, s.listPath)
	return err
}

func (s *Scheduler) runOnce() {
	_, err := s.runner.Run(s.ctx, s.listPath)
	switch {
	case err == nil:
	case errors.Is(err, aggregator.ErrCycleRunning):
		log.Printf("collect job skipped: previous cycle still running")
	default:
		// 周期模式下任何错误都不会终止进程，下一轮照常执行
		log.Printf("collect job error: %v", err)
	}
}
