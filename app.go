package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"echodesk/internal/bootstrap"
	"echodesk/internal/config"
	"echodesk/internal/domain"
	"echodesk/internal/usecase"
)

const (
	eventActivity   = "echodesk:activity"
	eventConnection = "echodesk:connection"
	eventResponse   = "echodesk:response"
	eventError      = "echodesk:error"
	eventSettings   = "echodesk:settings"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	logger     *zap.Logger
	controller *usecase.SessionController
	cfg        config.Config
	bootErr    error
}

func NewApp(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{logger: logger}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a.logger)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
}

func (a *App) shutdown(_ context.Context) {
	if a.controller != nil {
		_ = a.controller.Close()
	}
}

// Connect establishes connectivity to the assistant service.
func (a *App) Connect() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Connect(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// Disconnect closes the connection cleanly.
func (a *App) Disconnect() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Disconnect(); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StartListening begins microphone capture.
func (a *App) StartListening() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.StartListening(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StopListening ends microphone capture.
func (a *App) StopListening() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.StopListening(); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// SendTextMessage submits one text message to the assistant.
func (a *App) SendTextMessage(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.SendText(a.ctx, text)
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		status := domain.Status{Activity: domain.ActivityIdle}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	return a.controller.Status()
}

// GetHistory returns the interaction log, most recent first.
func (a *App) GetHistory() []domain.HistoryEntry {
	if a.controller == nil {
		return nil
	}
	return a.controller.History()
}

func (a *App) ClearHistory() {
	if a.controller != nil {
		a.controller.ClearHistory()
	}
}

func (a *App) ClearError() {
	if a.controller != nil {
		a.controller.ClearError()
	}
}

// OpenSettings notifies the shell that the settings surface was requested.
func (a *App) OpenSettings() {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSettings, nil)
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// ActivityChanged emits session activity updates to the frontend.
func (a *App) ActivityChanged(activity domain.Activity) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventActivity, map[string]string{
		"activity": string(activity),
	})
}

// ConnectionChanged emits connectivity updates to the frontend.
func (a *App) ConnectionChanged(connected bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventConnection, map[string]bool{
		"connected": connected,
	})
}

// ResponseReceived emits a completed interaction to the frontend.
func (a *App) ResponseReceived(entry domain.HistoryEntry) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventResponse, entry)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeConnection:
		return "Connection error"
	case domain.ErrorCodeSend:
		return "Message delivery failed"
	case domain.ErrorCodeAudioStart:
		return "Could not start listening"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAssistant:
		return "Assistant error"
	case domain.ErrorCodeParse:
		return "Unreadable service message"
	case domain.ErrorCodePlayback:
		return "Audio playback failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
