package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/VinMeld/complaint-portal/internal/captcha"
	"github.com/VinMeld/complaint-portal/internal/config"
	"github.com/VinMeld/complaint-portal/internal/db"
	"github.com/VinMeld/complaint-portal/internal/logging"
	"github.com/VinMeld/complaint-portal/internal/notify"
	"github.com/VinMeld/complaint-portal/internal/staging"
)

const captchaSweepInterval = 5 * time.Minute

// Server represents the HTTP server.
type Server struct {
	Addr    string
	Handler *Handler
	Server  *http.Server

	closers []io.Closer
}

// NewServer opens every backing store named by cfg and builds the API.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Addr: cfg.ListenAddr}

	store, err := db.Open(ctx, cfg.LocalSQL, cfg.SurveySQLConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.closers = append(s.closers, store)

	var cstore captcha.Store
	switch cfg.CaptchaStore {
	case "badger":
		logger.Info("Using Badger captcha store", "dir", cfg.CaptchaDir)
		cstore, err = captcha.OpenBadgerStore(cfg.CaptchaDir)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to open captcha store: %w", err)
		}
	default:
		logger.Info("Using in-memory captcha store")
		cstore = captcha.NewMemoryStore(captchaSweepInterval)
	}
	s.closers = append(s.closers, cstore)

	h := NewHandler(captcha.NewService(cstore, logger), staging.NewStore(cfg.SaveFileFolder), store)
	h.Logger = logger
	h.EmailList = cfg.EmailList
	h.MaxFiles = cfg.MaxFiles
	h.UIOrigin = cfg.UIOrigin
	h.LogPath = logging.FilePath(cfg.LogDir)
	h.Mailer = notify.NewSMTPMailer(notify.SMTPSettings{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})

	if cfg.ArchiveBucket != "" {
		logger.Info("Using S3 archive", "bucket", cfg.ArchiveBucket)
		archiver, err := staging.NewS3Archiver(ctx, cfg.ArchiveBucket, cfg.ArchiveRegion)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to create S3 archiver: %w", err)
		}
		h.Archiver = archiver
	}
	logger.Info("Using local staging", "dir", filepath.Clean(cfg.SaveFileFolder))

	s.Handler = h
	s.Server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Start starts the server. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	slog.Info("Server starting", "addr", s.Server.Addr)
	if err := s.Server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	return errors.Join(err, s.Close())
}

// Close releases the backing stores.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}
