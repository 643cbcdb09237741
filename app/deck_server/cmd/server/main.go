package main

import (
	"errors"
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/deck_forge/app/deck_server/internal/conf"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name string = "deck_server"
	// Version 是服务的版本号
	Version string
	// flagconf 是配置文件的路径命令行参数
	flagconf string

	id, _ = os.Hostname()
)

const confEnv = "DECK_SERVER_CONF"

func init() {
	// 默认指向 deck_server 的配置文件，可由 DECK_SERVER_CONF 覆盖
	flag.StringVar(&flagconf, "conf", defaultConfPath(), "config path, eg: -conf config.yaml")
}

func defaultConfPath() string {
	if p := os.Getenv(confEnv); p != "" {
		return p
	}
	return "app/deck_server/configs/config.yaml"
}

// checkBootstrap 服务与数据库必须配置；pipeline 缺省时全部走默认值
func checkBootstrap(bc *conf.Bootstrap) error {
	if bc.Server == nil || bc.Server.Http == nil || bc.Server.Http.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		return errors.New("data.database.source is required")
	}
	if bc.Pipeline == nil {
		bc.Pipeline = &conf.Pipeline{}
	}
	return nil
}

func main() {
	flag.Parse()
	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)
	helper := log.NewHelper(logger)

	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}
	if err := checkBootstrap(&bc); err != nil {
		helper.Fatalf("invalid config %s: %v", flagconf, err)
	}

	app, cleanup, err := initApp(bc.Server, bc.Data, bc.Pipeline, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	helper.Infof("deck_server listening on %s (config %s)", bc.Server.Http.Addr, flagconf)
	if err := app.Run(); err != nil {
		panic(err)
	}
}
