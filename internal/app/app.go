package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"instascrape/internal/adapter/gallerydl"
	"instascrape/internal/adapter/ytdlp"
	"instascrape/internal/config"
	httphandler "instascrape/internal/handler/http"
	"instascrape/internal/service/download"
	"instascrape/internal/service/library"
	"instascrape/internal/service/reconcile"
	"instascrape/internal/storage/credentials"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfgPath string
	cfg     *config.Config
	srv     *http.Server
	log     *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, lo))
	a.log = log

	creds := credentials.New(&a.cfg.Credentials, log)
	reconciler := reconcile.NewReconciler(log)
	primary := ytdlp.New(&a.cfg.YTDLP, log)
	fallback := gallerydl.New(&a.cfg.GalleryDL, log)

	dSrv := download.NewService(&a.cfg.Download, primary, fallback, reconciler, creds, log)
	lSrv := library.New(a.cfg.Download.BaseDir, log)

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", httphandler.NewRootHandler())
	mux.Handle("POST /download", httphandler.NewDownloadHandler(dSrv, log))
	mux.Handle("POST /download-carousel", httphandler.NewDownloadCarouselHandler(dSrv, log))
	mux.Handle("GET /downloads/{user_id}", httphandler.NewListDownloadsHandler(lSrv, log))
	mux.Handle("GET /media/{user_id}/{filename}", httphandler.NewMediaHandler(lSrv, log))
	mux.Handle("POST /upload-cookies", httphandler.NewUploadCookiesHandler(creds, log))
	mux.Handle("POST /validate-session", httphandler.NewValidateSessionHandler(dSrv, log))
	mux.Handle("GET /auth/status", httphandler.NewAuthStatusHandler(creds, log))
	mux.Handle("GET /metrics", promhttp.Handler())

	a.srv = &http.Server{
		Addr:    a.cfg.Listen,
		Handler: httphandler.CORS(a.cfg.CORSOrigins, httphandler.Metrics(mux)),
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.srv.Shutdown(ctx)
}
