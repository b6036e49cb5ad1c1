package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"filament-recognition-go/internal/app/services"
	"filament-recognition-go/internal/core/providers/vlllm"
	domainimage "filament-recognition-go/internal/domain/image"
	platformconfig "filament-recognition-go/internal/platform/config"
	platformerrors "filament-recognition-go/internal/platform/errors"
	httptransport "filament-recognition-go/internal/transport/http"
	httprecognition "filament-recognition-go/internal/transport/http/recognition"
	"filament-recognition-go/internal/utils"

	"golang.org/x/sync/errgroup"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config     *platformconfig.Config
	configPath string
	logger     *utils.Logger
	provider   *vlllm.Provider
	pipeline   *domainimage.Pipeline
	recognizer *services.RecognitionService
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}
	if state.recognizer == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"recognition service not initialised",
		)
	}

	logBootstrapGraph(logger, steps)

	defer func() {
		if state.provider != nil {
			if err := state.provider.Cleanup(); err != nil {
				logger.WarnTag("Boot", "provider cleanup failed: %v", err)
			}
		}
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("Boot", "service stopped cleanly")
	logger.Close()
	return nil
}

func logBootstrapGraph(logger *utils.Logger, steps []initStep) {
	if logger == nil {
		return
	}
	logger.InfoTag("Boot", "初始化依赖关系概览")
	for _, step := range steps {
		logger.InfoTag("Boot", "%s (%s)", step.Title, step.ID)
	}
	logger.InfoTag("Boot", "启动服务")
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the startup steps in dependency order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load-default",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load-default"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "vlllm:init-provider",
			Title:     "Initialise vision model provider",
			DependsOn: []string{"config:load-default", "logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initVLLLMStep,
		},
		{
			ID:        "recognizer:init-service",
			Title:     "Initialise recognition service",
			DependsOn: []string{"vlllm:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initRecognizerStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := utils.NewLogger(&utils.LogCfg{
		LogLevel: state.config.Log.Level,
		LogDir:   state.config.Log.Dir,
		LogFile:  state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider",
			"failed to initialise logger", err)
	}

	state.logger = logger
	utils.DefaultLogger = logger

	logger.InfoTag("Boot", "日志模块就绪 [%s] %s", state.config.Log.Level, state.configPath)
	return nil
}

func initVLLLMStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"vlllm:init-provider",
			"missing config/logger",
		)
	}

	selected := state.config.Selected.VLLLM
	entry, ok := state.config.VLLLM[selected]
	if !ok {
		return platformerrors.New(platformerrors.KindConfig, "vlllm:init-provider",
			fmt.Sprintf("selected VLLLM provider %q is not configured", selected))
	}

	provider, err := vlllm.NewProvider(&vlllm.Config{
		Type:        entry.Type,
		ModelName:   entry.ModelName,
		BaseURL:     entry.BaseURL,
		APIKey:      entry.APIKey,
		Temperature: entry.Temperature,
		MaxTokens:   entry.MaxTokens,
		TopP:        entry.TopP,
		Security:    entry.Security,
	}, state.logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "vlllm:init-provider",
			"failed to create VLLLM provider", err)
	}
	if err := provider.Initialize(); err != nil {
		return err
	}

	state.provider = provider
	state.logger.InfoTag("Boot", "vision provider ready: %s (%s)", selected, entry.ModelName)
	return nil
}

func initRecognizerStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logger == nil || state.provider == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"recognizer:init-service",
			"missing config/logger/provider",
		)
	}

	security := state.provider.GetConfig().Security
	pipeline, err := domainimage.NewPipeline(domainimage.Options{
		Security: &security,
		Logger:   state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "recognizer:init-service",
			"failed to create image pipeline", err)
	}
	state.pipeline = pipeline

	recognizer, err := services.NewRecognitionService(pipeline, state.provider, state.logger)
	if err != nil {
		return err
	}
	state.recognizer = recognizer
	return nil
}

func startHTTPServer(
	state *appState,
	g *errgroup.Group,
	groupCtx context.Context,
) (*http.Server, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	recognitionService, err := httprecognition.NewService(config, logger, state.recognizer)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "recognition:new-service",
			"failed to create recognition http service", err)
	}
	if err := recognitionService.Register(groupCtx, httpRouter.API); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "recognition:register",
			"failed to register recognition routes", err)
	}

	httpServer := &http.Server{
		Addr:    net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port)),
		Handler: httpRouter.Engine,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "Gin 服务已启动，访问地址 http://localhost:%d", config.Server.Port)
		logger.InfoTag("HTTP", "识别接口入口: http://localhost:%d/api/v1/recognize", config.Server.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP 服务关闭失败: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP 服务已优雅关闭")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP 服务启动失败: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *utils.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("Boot", "收到系统信号 %v，正在进行资源清理", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("Boot", "服务关闭过程中出现错误: %v", err)
			return err
		}
		logger.InfoTag("Boot", "所有服务已成功关闭")
	case <-time.After(15 * time.Second):
		timeoutErr := errors.New("服务关闭超时")
		logger.ErrorTag("Boot", "服务关闭超时，已强制退出")
		return timeoutErr
	}
	return nil
}

// loadConfigAndLogger 加载配置和日志记录器（用于测试）
func loadConfigAndLogger() (*platformconfig.Config, *utils.Logger, error) {
	state := &appState{}

	steps := []initStep{
		{
			ID:      "config:load-default",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load-default"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
	}

	if err := executeInitSteps(context.Background(), steps, state); err != nil {
		return nil, nil, err
	}

	return state.config, state.logger, nil
}
