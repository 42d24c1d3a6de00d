package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/codefolio/codefolio/internal/cache"
	"github.com/codefolio/codefolio/internal/config"
	"github.com/codefolio/codefolio/internal/logging"
	"github.com/codefolio/codefolio/internal/project"
	"github.com/codefolio/codefolio/internal/server"
	"github.com/codefolio/codefolio/internal/server/routes"
	"github.com/codefolio/codefolio/internal/source"
	"github.com/codefolio/codefolio/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	importOnly  bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["projects"] = len(cfg.Projects)
		fields["archives"] = config.ArchiveModes(cfg.Projects)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	projects, err := project.Open(cfg.Global.DatabasePath)
	if err != nil {
		fmt.Fprintf(stdErr, "打开内容库失败: %v\n", err)
		return 1
	}
	defer projects.Close()

	seeded, err := projects.Seed(context.Background(), cfg.Projects, cfg.Global.MediaRoot)
	if err != nil {
		fmt.Fprintf(stdErr, "导入项目失败: %v\n", err)
		return 1
	}

	if opts.importOnly {
		fields := logging.BaseFields("import", opts.configPath)
		fields["projects"] = seeded
		fields["database"] = cfg.Global.DatabasePath
		logger.WithFields(fields).Info("项目导入完成")
		return 0
	}

	// 启动顺序：配置 → 内容库 → 解压缓存 → Fiber server，
	// 所有请求共享同一个缓存实例与项目锁。
	store, err := cache.NewStore(cfg.Global.MediaRoot)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	limits := source.Limits{
		MaxEntries:   cfg.Global.MaxArchiveEntries,
		MaxTotalSize: cfg.Global.MaxArchiveSize.Int64(),
	}
	extractor := source.NewExtractor(store, limits, logger)
	service := source.NewService(projects, extractor)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["projects"] = seeded
	fields["listen_port"] = cfg.Global.ListenPort
	fields["media_root"] = cfg.Global.MediaRoot
	fields["max_archive_size"] = cfg.Global.MaxArchiveSize.String()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, service, store, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("codefolio", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		importOnly bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 CODEFOLIO_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&importOnly, "import-only", false, "仅将配置中的项目导入内容库后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("CODEFOLIO_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		importOnly:  importOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, service *source.Service, store cache.Store, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:       logger,
		ReadTimeout:  cfg.Global.ReadTimeout.DurationValue(),
		WriteTimeout: cfg.Global.WriteTimeout.DurationValue(),
	})
	if err != nil {
		return err
	}
	routes.RegisterSourceRoutes(app, service, logger)
	routes.RegisterDiagnosticsRoutes(app, store, logger)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
