package bootstrap

import (
	"go.uber.org/zap"

	"echodesk/internal/audio"
	"echodesk/internal/config"
	"echodesk/internal/history"
	"echodesk/internal/ports"
	"echodesk/internal/transport"
	"echodesk/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, logger *zap.Logger) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ws := transport.NewWebSocket(transport.Config{
		URL:        cfg.Service.WebSocketURL,
		RetryLimit: cfg.Service.RetryLimit,
		RetryDelay: cfg.Service.RetryDelay,
	}, logger.Named("transport"))

	fallback := transport.NewFallback(
		cfg.Service.HTTPBaseURL,
		cfg.Service.RequestTimeout,
		logger.Named("fallback"),
	)

	recorder := audio.NewRecorder(audio.Config{
		Command:       cfg.Audio.RecorderCommand,
		PlayerCommand: cfg.Audio.PlayerCommand,
		InputFormat:   cfg.Audio.InputFormat,
		InputDevice:   cfg.Audio.InputDevice,
		SampleRate:    cfg.Audio.SampleRate,
		Channels:      cfg.Audio.Channels,
		ChunkInterval: cfg.Audio.ChunkInterval,
	}, logger.Named("audio"))

	controller := usecase.NewSessionController(
		ws,
		fallback,
		recorder,
		history.NewLog(cfg.History.Limit),
		eventSink,
		logger.Named("session"),
	)

	return Services{Controller: controller, Config: cfg}, nil
}
