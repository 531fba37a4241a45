package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/macro-export/internal/config"
	"github.com/any-hub/macro-export/internal/exporter"
	"github.com/any-hub/macro-export/internal/exporter/mirror"
	_ "github.com/any-hub/macro-export/internal/exporter/null"
	"github.com/any-hub/macro-export/internal/exporter/pycache"
	"github.com/any-hub/macro-export/internal/logging"
	"github.com/any-hub/macro-export/internal/server"
	"github.com/any-hub/macro-export/internal/server/routes"
	"github.com/any-hub/macro-export/internal/version"
)

const configEnv = "MACRO_EXPORT_CONFIG"

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	cachePath   string
	inspectPath string
	exportPath  string
	codePath    string
	moduleName  string
	serve       bool
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
		fields["exporter"] = cfg.Exporter.Kind
		fields["runtime"] = cfg.Exporter.Runtime
		fields["invalidation"] = string(cfg.Exporter.Invalidation)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	runtime, err := config.BuildExporterRuntime(cfg.Exporter)
	if err != nil {
		fmt.Fprintf(stdErr, "构建导出器失败: %v\n", err)
		return 1
	}

	// 所有路径均为绝对路径，文件系统以根目录为基准。
	deps := exporter.Deps{
		FS:       osfs.New("/"),
		Logger:   logger,
		Unparser: exporter.TextUnparser,
	}
	inspector := runtime.Inspector(deps)

	switch {
	case opts.cachePath != "":
		source, err := filepath.Abs(opts.cachePath)
		if err != nil {
			fmt.Fprintf(stdErr, "解析源文件路径失败: %v\n", err)
			return 1
		}
		path, err := inspector.CachePathFor(source)
		if err != nil {
			fmt.Fprintf(stdErr, "推导缓存路径失败: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdOut, path)
		return 0

	case opts.inspectPath != "":
		path, err := filepath.Abs(opts.inspectPath)
		if err != nil {
			fmt.Fprintf(stdErr, "解析缓存路径失败: %v\n", err)
			return 1
		}
		report, err := inspector.Inspect(path)
		if err != nil {
			fmt.Fprintf(stdErr, "解析缓存失败: %v\n", err)
			return 1
		}
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(stdErr, "编码缓存报告失败: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdOut, string(encoded))
		return 0

	case opts.exportPath != "":
		if err := exportOnce(context.Background(), runtime, deps, opts); err != nil {
			fmt.Fprintf(stdErr, "导出失败: %v\n", err)
			return 1
		}
		return 0
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["exporter"] = cfg.Exporter.Kind
	fields["runtime"] = runtime.Runtime.Name
	fields["listen_port"] = cfg.Global.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, &runtime, inspector, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// exportOnce 构建配置的导出器并导出单个源文件；源码文本本身作为语法树交给恒等 unparser。
func exportOnce(ctx context.Context, runtime config.ExporterRuntime, deps exporter.Deps, opts cliOptions) error {
	if opts.codePath == "" {
		return fmt.Errorf("-export 需要同时提供 -code")
	}
	source, err := filepath.Abs(opts.exportPath)
	if err != nil {
		return err
	}
	codePath, err := filepath.Abs(opts.codePath)
	if err != nil {
		return err
	}
	code, err := util.ReadFile(deps.FS, codePath)
	if err != nil {
		return fmt.Errorf("读取代码对象失败: %w", err)
	}
	text, err := util.ReadFile(deps.FS, source)
	if err != nil {
		return fmt.Errorf("读取源文件失败: %w", err)
	}

	exp, err := runtime.Build(deps)
	if err != nil {
		return err
	}
	if err := exporter.Initialize(ctx, exp); err != nil {
		return err
	}

	module := opts.moduleName
	if module == "" {
		module = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	if err := exp.ExportTransformed(ctx, exporter.Artifact{
		Code:       exporter.RawCode(code),
		Tree:       string(text),
		ModuleName: module,
		SourcePath: source,
	}); err != nil {
		return err
	}

	fields := logging.ExportFields(runtime.Config.Kind, module, source, "")
	fields["action"] = "export"
	switch e := exp.(type) {
	case *mirror.Exporter:
		fields["root"] = e.Root()
		fields["target"] = e.TargetDirectory()
	case *pycache.Exporter:
		fields["root"] = e.Root()
		fields["invalidation"] = string(e.Mode())
		if target, err := e.CachePathFor(source); err == nil {
			fields["target"] = target
		}
	}
	deps.LoggerOrDefault().WithFields(fields).Info("导出完成")
	return nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("macro-export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		opts       cliOptions
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 "+configEnv+" 覆盖）")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	fs.StringVar(&opts.cachePath, "cache-path", "", "输出源文件对应的缓存路径")
	fs.StringVar(&opts.inspectPath, "inspect", "", "以 JSON 输出缓存文件头部")
	fs.StringVar(&opts.exportPath, "export", "", "导出指定源文件")
	fs.StringVar(&opts.codePath, "code", "", "序列化后的代码对象文件（配合 -export）")
	fs.StringVar(&opts.moduleName, "module", "", "模块名（配合 -export，默认取文件名）")
	fs.BoolVar(&opts.serve, "serve", false, "启动诊断 HTTP 服务（默认行为）")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv(configEnv)
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}
	opts.configPath = path

	actions := 0
	for _, set := range []bool{opts.cachePath != "", opts.inspectPath != "", opts.exportPath != "", opts.serve} {
		if set {
			actions++
		}
	}
	if actions > 1 {
		return cliOptions{}, fmt.Errorf("-cache-path/-inspect/-export/-serve 只能选择一个")
	}
	if opts.codePath != "" && opts.exportPath == "" {
		return cliOptions{}, fmt.Errorf("-code 只能与 -export 一起使用")
	}

	return opts, nil
}

func startHTTPServer(cfg *config.Config, runtime *config.ExporterRuntime, inspector server.CacheInspector, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Runtime:    runtime,
		Inspector:  inspector,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterExporterRoutes(app, runtime, inspector)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
