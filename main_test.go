package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codefolio/codefolio/internal/project"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("CODEFOLIO_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml", "--import-only"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
	if !opts.importOnly {
		t.Fatalf("应解析 --import-only")
	}
}

func TestParseCLIFlagsDefaultPath(t *testing.T) {
	t.Setenv("CODEFOLIO_CONFIG", "")

	opts, err := parseCLIFlags(nil)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "config.toml" {
		t.Fatalf("默认配置路径应为 config.toml，得到 %s", opts.configPath)
	}

	if _, err := parseCLIFlags([]string{"--unknown"}); err == nil {
		t.Fatalf("未知参数应返回错误")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "加载配置失败") {
		t.Fatalf("stderr 应包含失败原因，得到 %s", stdErrBuffer().String())
	}
}

func TestRunImportOnlySeedsDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "codefolio.db")
	configPath := writeConfigFile(t, fmt.Sprintf(`
MediaRoot = "%s"
DatabasePath = "%s"

[[Project]]
ID = 7
Title = "Portfolio"
Archive = "project_sources/portfolio.zip"

[[Project]]
ID = 8
Title = "Notes"
`, filepath.Join(dir, "media"), dbPath))

	useBufferWriters(t)
	code := run(cliOptions{configPath: configPath, importOnly: true})
	if code != 0 {
		t.Fatalf("导入应成功，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}

	store, err := project.Open(dbPath)
	if err != nil {
		t.Fatalf("打开内容库失败: %v", err)
	}
	defer store.Close()

	p, err := store.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("读取项目失败: %v", err)
	}
	want := filepath.Join(dir, "media", "project_sources", "portfolio.zip")
	if p.ArchivePath != want {
		t.Fatalf("压缩包路径应基于 MediaRoot，期望 %s 得到 %s", want, p.ArchivePath)
	}

	notes, err := store.Get(context.Background(), 8)
	if err != nil {
		t.Fatalf("读取项目失败: %v", err)
	}
	if notes.HasArchive() {
		t.Fatalf("未声明 Archive 的项目不应关联压缩包")
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "codefolio") {
		t.Fatalf("version 输出应包含 codefolio 标识")
	}
}
