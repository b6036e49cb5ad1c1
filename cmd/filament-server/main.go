// @title 耗材识别服务 API 文档
// @version 1.0
// @description 3D打印耗材标签图像识别服务，基于视觉语言模型
// @host localhost:8000
// @BasePath /api
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"filament-recognition-go/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [Boot] 开始启动 filament-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "filament-server failed: %v\n", err)
		os.Exit(1)
	}
}
