package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/encode-hub/encode-hub/internal/encode"
	"github.com/encode-hub/encode-hub/internal/logging"
	"github.com/encode-hub/encode-hub/internal/server"
	"github.com/encode-hub/encode-hub/internal/server/routes"
	"github.com/encode-hub/encode-hub/internal/version"
)

func newCheckConfigCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "仅校验配置后退出",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap(opts)
			if err != nil {
				return err
			}
			fields := logging.BaseFields("check_config", env.configPath)
			fields["cache_dir"] = env.cfg.Global.CacheDir
			fields["root_url"] = env.cfg.Global.RootURL
			fields["result"] = "ok"
			env.logger.WithFields(fields).Info("配置校验通过")
			return nil
		},
	}
}

func newCollectionsCommand(opts *cliOptions) *cobra.Command {
	var sorted bool
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "列出根目录下的全部集合",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap(opts)
			if err != nil {
				return err
			}
			cat, err := env.openCatalogue(cmd.Context())
			if err != nil {
				return err
			}
			collections := cat.Collections()
			if sorted {
				encode.SortByName(collections)
			}
			for _, c := range collections {
				fmt.Fprintln(stdOut, c.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&sorted, "sorted", false, "按名称排序输出")
	return cmd
}

func newFilesCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "files <collection>",
		Short: "列出集合内的文件（name, type, size, cached）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := bootstrap(opts)
			if err != nil {
				return err
			}
			cat, err := env.openCatalogue(cmd.Context())
			if err != nil {
				return err
			}
			collection, err := cat.Collection(args[0])
			if err != nil {
				return err
			}
			files, err := collection.Files(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range files {
				size, _ := f.Attr("size")
				fmt.Fprintf(stdOut, "%s\t%s\t%s\t%t\n", f.Name, f.Type(), size, f.Cached())
			}
			return nil
		},
	}
}

func newInfoCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <collection> <file>",
		Short: "显示文件的位置与全部属性",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := bootstrap(opts)
			if err != nil {
				return err
			}
			file, err := env.lookupFile(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(stdOut, "url\t%s\n", file.URL)
			fmt.Fprintf(stdOut, "local\t%s\n", file.LocalURL)
			fmt.Fprintf(stdOut, "cached\t%t\n", file.Cached())
			for _, key := range file.Keys() {
				value, _ := file.Attr(key)
				fmt.Fprintf(stdOut, "%s\t%s\n", key, value)
			}
			return nil
		},
	}
}

func newFetchCommand(opts *cliOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "fetch <collection> [file...]",
		Short: "把文件下载到本地缓存（不指定文件时下载整个集合）",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := bootstrap(opts)
			if err != nil {
				return err
			}
			cat, err := env.openCatalogue(cmd.Context())
			if err != nil {
				return err
			}
			collection, err := cat.Collection(args[0])
			if err != nil {
				return err
			}

			var files []*encode.File
			if len(args) == 1 {
				if files, err = collection.Files(cmd.Context()); err != nil {
					return err
				}
			}
			for _, name := range args[1:] {
				file, err := collection.File(cmd.Context(), name)
				if err != nil {
					return err
				}
				files = append(files, file)
			}

			for _, file := range files {
				if _, err := file.Fetch(cmd.Context(), force); err != nil {
					return err
				}
				fmt.Fprintln(stdOut, file.LocalPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "即使已缓存也重新下载")
	return cmd
}

func newCatCommand(opts *cliOptions) *cobra.Command {
	var text bool
	cmd := &cobra.Command{
		Use:   "cat <collection> <file>",
		Short: "把文件内容写到标准输出（已缓存时读本地，否则直接读远端）",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := bootstrap(opts)
			if err != nil {
				return err
			}
			file, err := env.lookupFile(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			open := file.OpenBinary
			if text {
				open = file.OpenText
			}
			return encode.WithStream(cmd.Context(), open, func(s *encode.Stream) error {
				written, err := io.Copy(stdOut, s)
				env.logger.WithFields(logging.RequestFields("", file.Collection(), file.Name, s.Cached())).
					WithField("bytes", humanize.Bytes(uint64(written))).Debug("cat")
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "透明解压 .gz 文件")
	return cmd
}

func newIntervalsCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "intervals <collection> <file> <chrom> <pos|begin-end>",
		Short: "在 bed/narrowPeak/broadPeak 文件中查询与位置或区间重叠的记录",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			begin, end, err := parsePosition(args[3])
			if err != nil {
				return err
			}
			env, err := bootstrap(opts)
			if err != nil {
				return err
			}
			file, err := env.lookupFile(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			index, err := file.ReadIntervals(cmd.Context())
			if err != nil {
				return err
			}
			for _, hit := range index.Search(args[2], begin, end) {
				fields := append([]string{hit.Chrom, strconv.Itoa(hit.Begin), strconv.Itoa(hit.End)}, hit.Data...)
				fmt.Fprintln(stdOut, strings.Join(fields, "\t"))
			}
			return nil
		},
	}
}

func newServeCommand(opts *cliOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动只读浏览 HTTP 服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := bootstrap(opts)
			if err != nil {
				return err
			}
			if port > 0 {
				env.cfg.Global.ListenPort = port
			}
			cat, err := env.openCatalogue(cmd.Context())
			if err != nil {
				return err
			}

			fields := logging.BaseFields("startup", env.configPath)
			fields["collections"] = len(cat.Names())
			fields["cache_dir"] = cat.CacheDir()
			fields["listen_port"] = env.cfg.Global.ListenPort
			fields["version"] = version.Full()
			env.logger.WithFields(fields).Info("配置加载完成")

			return startHTTPServer(cmd.Context(), env.cfg.Global.ListenPort, cat, env.logger)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "覆盖配置中的 ListenPort")
	return cmd
}

func (env *environment) lookupFile(cmd *cobra.Command, collectionName, fileName string) (*encode.File, error) {
	cat, err := env.openCatalogue(cmd.Context())
	if err != nil {
		return nil, err
	}
	collection, err := cat.Collection(collectionName)
	if err != nil {
		return nil, err
	}
	return collection.File(cmd.Context(), fileName)
}

// parsePosition 解析 "pos" 或 "begin-end"，返回半开区间。
func parsePosition(raw string) (int, int, error) {
	if beginRaw, endRaw, ok := strings.Cut(raw, "-"); ok {
		begin, err := strconv.Atoi(beginRaw)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid begin %q: %w", beginRaw, err)
		}
		end, err := strconv.Atoi(endRaw)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid end %q: %w", endRaw, err)
		}
		if end <= begin {
			return 0, 0, fmt.Errorf("empty range %q", raw)
		}
		return begin, end, nil
	}
	pos, err := strconv.Atoi(raw)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid position %q: %w", raw, err)
	}
	return pos, pos + 1, nil
}

func startHTTPServer(ctx context.Context, port int, cat *encode.Catalogue, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterCatalogueRoutes(app, cat, logger)
	routes.RegisterFileRoutes(app, cat, logger)
	routes.RegisterMetricsRoutes(app)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	return app.Listen(fmt.Sprintf(":%d", port))
}
