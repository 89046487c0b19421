package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
)

type Tray struct {
	logger *slog.Logger

	statusItem *systray.MenuItem
	videoItem  *systray.MenuItem
	cancelItem *systray.MenuItem

	// mu guards the menu items and ready. Updates arrive from the agent's
	// status poll before systray may have built the menu, so every updater
	// no-ops until onReady has run.
	mu    sync.Mutex
	ready bool

	onOpenEditor   func() error
	onCancelExport func()
	onQuit         func()
}

type TrayConfig struct {
	Logger         *slog.Logger
	OnOpenEditor   func() error
	OnCancelExport func()
	OnQuit         func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		logger:         cfg.Logger,
		onOpenEditor:   cfg.OnOpenEditor,
		onCancelExport: cfg.OnCancelExport,
		onQuit:         cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Obscura")
	systray.SetTooltip("Obscura Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.videoItem = systray.AddMenuItem("No video loaded", "Video under edit")
	t.videoItem.Disable()

	systray.AddSeparator()

	openEditorItem := systray.AddMenuItem("Open Editor...", "Open the editor in a browser")
	t.cancelItem = systray.AddMenuItem("Cancel Export", "Stop the running export")
	t.cancelItem.Disable()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Obscura Agent")

	go func() {
		for {
			select {
			case <-openEditorItem.ClickedCh:
				t.handleOpenEditor()
			case <-t.cancelItem.ClickedCh:
				t.handleCancelExport()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.mu.Lock()
	t.ready = true
	t.mu.Unlock()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleOpenEditor() {
	if t.onOpenEditor != nil {
		if err := t.onOpenEditor(); err != nil {
			t.logger.Error("failed to open editor", "error", err)
		}
	}
}

func (t *Tray) handleCancelExport() {
	if t.onCancelExport != nil {
		t.onCancelExport()
	}
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

// UpdateVideo shows the filename of the loaded video, or the idle label
// when empty.
func (t *Tray) UpdateVideo(filename string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}

	if filename == "" {
		t.videoItem.SetTitle("No video loaded")
		return
	}
	t.videoItem.SetTitle(fmt.Sprintf("Editing: %s", filename))
}

// SetExportRunning toggles the cancel item with the export lifecycle.
func (t *Tray) SetExportRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}

	if running {
		t.cancelItem.Enable()
	} else {
		t.cancelItem.Disable()
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
