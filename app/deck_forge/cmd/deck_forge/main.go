package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/config"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/engine"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/logger"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/render"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/source"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/storage"
)

var (
	flagconf   string
	flagInput  string
	flagOut    string
	flagFormat string
	flagSlides int
	flagLang   string
	flagSave   bool
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.StringVar(&flagInput, "input", "", "input text, file path or http(s) url")
	flag.StringVar(&flagOut, "out", "output/deck.json", "output path, - for stdout")
	flag.StringVar(&flagFormat, "format", "", "output format: json | html (default from -out extension)")
	flag.IntVar(&flagSlides, "slides", 0, "target slide count (3-10), overrides config")
	flag.StringVar(&flagLang, "lang", "", "deck language: vi | en | auto, overrides config")
	flag.BoolVar(&flagSave, "save", false, "persist the run to postgres")
}

func main() {
	flag.Parse()
	if flagInput == "" && flag.NArg() > 0 {
		flagInput = flag.Arg(0)
	}
	if flagInput == "" {
		log.Fatal("缺少输入: 使用 -input 指定文本、文件或 URL")
	}

	// 1. 加载配置，配置文件不存在时使用默认值
	cfg, err := config.LoadConfig(flagconf)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}

	// 2. 初始化日志
	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动 deck_forge...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stageCfg := cfg.Pipeline
	if flagSlides > 0 {
		stageCfg.TargetSlideCount = flagSlides
	}
	if flagLang != "" {
		stageCfg.Language = model.Language(flagLang)
	}
	if err := stageCfg.Validate(); err != nil {
		logger.Log.Fatalf("参数错误: %v", err)
	}

	// 3. 读取输入
	doc, err := source.NewLoader(30*time.Second).Load(ctx, flagInput)
	if err != nil {
		logger.Log.Fatalf("读取输入失败: %v", err)
	}
	logger.Log.Infof("已读取输入 (%s, %d 字符)", doc.Kind, len([]rune(doc.Text)))

	// 4. 初始化缓存与引擎
	c, cleanup, err := engine.NewCache(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("缓存初始化失败: %v", err)
	}
	defer cleanup()

	eng, err := engine.NewEngine(ctx, cfg, c)
	if err != nil {
		logger.Log.Fatalf("引擎初始化失败: %v", err)
	}

	// 5. 运行流水线
	start := time.Now()
	deck, report, err := eng.Run(ctx, doc.Text, stageCfg, engine.RunOptions{
		ProgressCallback: func(status string, percent int) {
			logger.Log.Infof("[%3d%%] %s", percent, status)
		},
	})
	if err != nil {
		logger.Log.Fatalf("生成失败: %v", err)
	}

	// 6. 渲染
	format := flagFormat
	if format == "" {
		format = formatFromPath(flagOut)
	}
	renderer, err := render.New(format)
	if err != nil {
		logger.Log.Fatalf("%v", err)
	}
	if err := writeOutput(ctx, renderer, deck, flagOut); err != nil {
		logger.Log.Fatalf("渲染失败: %v", err)
	}

	// 7. 保存运行记录
	if flagSave {
		if err := saveRun(ctx, cfg, deck); err != nil {
			logger.Log.Errorf("保存运行记录失败: %v", err)
		}
	}

	printSummary(os.Stdout, deck, report, time.Since(start), flagOut)
}

func formatFromPath(path string) string {
	switch filepath.Ext(path) {
	case ".html", ".htm":
		return "html"
	}
	return "json"
}

func writeOutput(ctx context.Context, r render.Renderer, deck *model.Deck, path string) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return r.Render(ctx, deck, w)
}

func saveRun(ctx context.Context, cfg *config.Config, deck *model.Deck) error {
	if cfg.DB.Host == "" {
		logger.Log.Info("未配置数据库信息，跳过保存")
		return nil
	}
	db, err := storage.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	store, err := storage.NewStorage(ctx, db)
	if err != nil {
		db.Close()
		return err
	}
	defer store.Close()

	run := storage.NewRun(deck)
	if err := store.SaveRun(ctx, run); err != nil {
		return err
	}
	logger.Log.Infof("运行记录已保存: %s", run.ID)
	return nil
}
