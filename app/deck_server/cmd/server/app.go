package main

import (
	"time"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/source"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/conf"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/data"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/server"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/service"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/usecase"
)

// initApp 按依赖顺序组装 kratos 应用
func initApp(cs *conf.Server, cd *conf.Data, cp *conf.Pipeline, logger log.Logger) (*kratos.App, func(), error) {
	d, cleanupData, err := data.NewData(cd, logger)
	if err != nil {
		return nil, nil, err
	}
	runRepo := data.NewRunRepo(d, logger)

	pipelineCfg := server.PipelineConfig(cp)
	eng, cleanupPipeline, err := server.NewPipeline(pipelineCfg, d.DB(), logger)
	if err != nil {
		cleanupData()
		return nil, nil, err
	}

	uc := usecase.NewDeckUseCase(eng, source.NewLoader(30*time.Second), runRepo, logger)
	svc := service.NewDeckService(uc, pipelineCfg.Pipeline, logger)
	hs := server.NewHTTPServer(cs, svc, logger)

	app := newApp(logger, hs)
	return app, func() {
		cleanupPipeline()
		cleanupData()
	}, nil
}

func newApp(logger log.Logger, hs *http.Server) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(hs),
	)
}
