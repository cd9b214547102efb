package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// 采集命令行入口：默认只执行一轮；--every 进入周期模式
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
