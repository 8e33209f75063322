package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/encode-hub/encode-hub/internal/config"
	"github.com/encode-hub/encode-hub/internal/encode"
	"github.com/encode-hub/encode-hub/internal/logging"
	"github.com/encode-hub/encode-hub/internal/transport"
)

// cliOptions 汇总全局标志，子命令共享同一份，便于在测试中注入。
type cliOptions struct {
	configPath string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

// run 构建命令树并执行 args，返回退出码，方便测试。
func run(ctx context.Context, args []string) int {
	root := newRootCommand(&cliOptions{})
	root.SetArgs(args)
	root.SetOut(stdOut)
	root.SetErr(stdErr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stdErr, "encode-hub: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand(opts *cliOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "encode-hub",
		Short: "Browse and mirror the ENCODE download tree",
		Long: `encode-hub exposes the ENCODE file tree as collections of annotated files.
Collection names, manifests and files are mirrored into a local cache the
first time they are needed and read from disk afterwards.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"配置文件路径（默认 ./config.toml，可被 ENCODE_HUB_CONFIG 覆盖）")

	root.AddCommand(
		newVersionCommand(),
		newCheckConfigCommand(opts),
		newCollectionsCommand(opts),
		newFilesCommand(opts),
		newInfoCommand(opts),
		newFetchCommand(opts),
		newCatCommand(opts),
		newIntervalsCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// resolveConfigPath 按 --config、ENCODE_HUB_CONFIG 的优先级确定配置路径；
// 都为空时返回空串，由 config.Load 读取可选的 ./config.toml。
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("ENCODE_HUB_CONFIG")
}

// environment 是子命令共享的运行时依赖。
type environment struct {
	configPath string
	cfg        *config.Config
	logger     *logrus.Logger
}

func bootstrap(opts *cliOptions) (*environment, error) {
	path := resolveConfigPath(opts.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	if path == "" {
		path = config.DefaultConfigPath
	}
	return &environment{configPath: path, cfg: cfg, logger: logger}, nil
}

// openCatalogue 按配置打开 Catalogue；ShowProgress 为真时把下载进度写到 stderr。
func (env *environment) openCatalogue(ctx context.Context) (*encode.Catalogue, error) {
	g := env.cfg.Global
	opts := encode.Options{
		CacheDir: g.CacheDir,
		RootURL:  g.RootURL,
		Client:   transport.NewClient(g.UpstreamTimeout.DurationValue()),
		Logger:   env.logger,
	}
	if g.ShowProgress {
		opts.Progress = newProgressPrinter(stdErr).Report
	}
	return encode.Open(ctx, opts)
}
