package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/obscura/obscura-agent/internal/api"
	"github.com/obscura/obscura-agent/internal/config"
	"github.com/obscura/obscura-agent/internal/db"
	"github.com/obscura/obscura-agent/internal/detect"
	"github.com/obscura/obscura-agent/internal/logging"
	"github.com/obscura/obscura-agent/internal/playback"
	"github.com/obscura/obscura-agent/internal/project"
	"github.com/obscura/obscura-agent/internal/ui"
)

var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting obscura agent", "version", Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := project.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                    OBSCURA AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	faces, err := detect.NewFaceDetector(cfg.CascadeDir(), logger)
	if err != nil {
		logger.Warn("face detection unavailable", "error", err, "cascade_dir", cfg.CascadeDir())
		faces = nil
	}

	service := project.NewService(repo, faces, logger)
	service.SetTrackCap(cfg.TrackCap())
	playbackSvc := playback.NewServer(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := project.NewRunner(service, repo, logger)
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Service:    service,
		Repository: repo,
		Playback:   playbackSvc,
		Logger:     logger,
		StartTime:  startTime,
		DeviceID:   deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	editorURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Port())

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Logger: logger,
			OnOpenEditor: func() error {
				return openBrowser(editorURL)
			},
			OnCancelExport: func() {
				service.CancelExport()
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
		go pollTrayStatus(ctx, tray, service, runner)
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	if err := service.CloseVideo(context.Background()); err != nil && err != project.ErrNoSession {
		logger.Error("failed to close session", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// pollTrayStatus mirrors the agent's state into the tray menu every couple
// of seconds, the same way the job runner polls its queue.
func pollTrayStatus(ctx context.Context, tray *ui.Tray, service *project.Service, runner *project.Runner) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			filename := ""
			if session, err := service.Current(); err == nil {
				filename = filepath.Base(session.Video.Path)
			}
			tray.UpdateVideo(filename)

			exporting := service.ExportRunning()
			tray.SetExportRunning(exporting)

			switch {
			case exporting:
				tray.UpdateStatus("Exporting")
			case runner.ActiveJobCount(ctx) > 0:
				tray.UpdateStatus("Analyzing")
			default:
				tray.UpdateStatus("Idle")
			}
		}
	}
}

func ensureDeviceID(repo project.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo project.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}

func openBrowser(url string) error {
	switch {
	case commandExists("xdg-open"):
		return exec.Command("xdg-open", url).Start()
	case commandExists("open"):
		return exec.Command("open", url).Start()
	default:
		return fmt.Errorf("no browser opener found for %s", url)
	}
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
