package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/HeadlineHub/internal/api"
	"github.com/LJTian/HeadlineHub/internal/app"
	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/scheduler"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	a := app.New(cfg)
	defer a.Close()

	s, err := scheduler.New(context.Background(), cfg.CronSpec, a.Aggregator, cfg.SourceList)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	// 延迟执行首轮采集，避免与启动时的首批读请求争抢资源
	var startupDelay time.Duration
	if cfg.RunOnStart {
		startupDelay = 5 * time.Second
	}
	s.Start(startupDelay)

	r := gin.Default()
	// Redis 未配置时必须传 nil 接口，而不是 nil 指针
	var listCache api.ListCache
	if a.Redis != nil {
		listCache = a.Redis
	}
	api.NewServer(a.Headlines, listCache).RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}
	go func() {
		log.Printf("starting api server at %s ...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("shutting down ...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("warn: server shutdown: %v", err)
	}
	select {
	case <-s.Stop().Done():
	case <-ctx.Done():
		log.Printf("warn: collect job still running at shutdown")
	}
}
