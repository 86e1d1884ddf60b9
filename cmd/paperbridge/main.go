package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/paperbridge/paperbridge/internal/bridge"
	"github.com/paperbridge/paperbridge/internal/channel"
	"github.com/paperbridge/paperbridge/internal/config"
	"github.com/paperbridge/paperbridge/internal/handlers"
)

var version = "dev"

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("paperbridge %s\n", version)
		os.Exit(0)
	}

	if err := os.MkdirAll(cfg.ProfileDir, 0755); err != nil {
		slog.Error("cannot create profile dir", "err", err)
		os.Exit(1)
	}

	_, allocCancel, browserCtx, browserCancel, err := bridge.InitChrome(cfg)
	if err != nil {
		slog.Error("chrome failed to start", "err", err)
		os.Exit(1)
	}
	defer allocCancel()
	defer browserCancel()

	ch := channel.New()
	baseURL := "http://localhost:" + cfg.Port
	session := bridge.NewSession(cfg, baseURL, ch)

	ch.OnPush(func(method string, params json.RawMessage) {
		switch method {
		case "loadAnnotations":
			var p struct {
				Annotations []bridge.Annotation `json:"annotations"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				slog.Warn("bad loadAnnotations params", "err", err)
				return
			}
			session.LoadAnnotations(context.Background(), p.Annotations)
		case "confirmAnnotation":
			var p struct {
				ID int `json:"id"`
			}
			if err := json.Unmarshal(params, &p); err != nil || p.ID <= 0 {
				slog.Warn("bad confirmAnnotation params", "err", err)
				return
			}
			session.ConfirmAnnotation(context.Background(), p.ID)
		default:
			slog.Warn("unknown channel push", "method", method)
		}
	})

	if err := session.Attach(browserCtx); err != nil {
		slog.Error("attach session", "err", err)
		os.Exit(1)
	}

	if cfg.HostURL != "" {
		go func() {
			if err := ch.Connect(context.Background(), cfg.HostURL,
				cfg.ChannelRetryInterval, cfg.ChannelRetryMax); err != nil {
				slog.Warn("host channel unavailable, running standalone", "err", err)
			}
		}()
	}

	// A document named at startup opens once the server is up.
	if file := os.Getenv("BRIDGE_FILE"); file != "" {
		go func() {
			time.Sleep(300 * time.Millisecond)
			if err := session.Open(context.Background(), file); err != nil {
				slog.Error("open startup document", "file", file, "err", err)
			}
		}()
	}

	mux := http.NewServeMux()
	h := handlers.New(session, ch, cfg)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownOnce := &sync.Once{}
	doShutdown := func() {
		shutdownOnce.Do(func() {
			slog.Info("shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Error("server shutdown", "err", err)
			}
			browserCancel()
			allocCancel()
			slog.Info("chrome closed")
		})
	}

	h.RegisterRoutes(mux, doShutdown)
	srv.Handler = handlers.LoggingMiddleware(
		handlers.CORSMiddleware(handlers.AuthMiddleware(cfg.Token, mux)))

	setupSignalHandler(doShutdown, func() {
		browserCancel()
		allocCancel()
	})

	slog.Info("📄 PaperBridge", "listen", cfg.ListenAddr(),
		"viewer", cfg.ViewerDir, "docs", cfg.DocRoot,
		"host", cfg.HostURL, "token", config.MaskToken(cfg.Token))

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server", "err", err)
		os.Exit(1)
	}
}

func setupSignalHandler(shutdownFn func(), forceFn func()) {
	go func() {
		sig := make(chan os.Signal, 2)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		go shutdownFn()
		<-sig
		slog.Warn("force shutdown requested")
		forceFn()
		os.Exit(130)
	}()
}
