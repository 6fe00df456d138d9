package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/hexforge/hexforge/internal/config"
	"github.com/hexforge/hexforge/internal/core/document"
	"github.com/hexforge/hexforge/internal/core/observability/log"
	"github.com/hexforge/hexforge/internal/provider"
)

// Server exposes display surfaces over websockets. Each connection binds
// one surface to one document: the connection upgrades, the document is
// opened (or re-referenced), frames flow through the provider's bridge,
// and closing the connection detaches the surface and releases the
// document.
type Server struct {
	cfg      config.Config
	provider *provider.Provider
	log      log.Log
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates a Server.
func New(cfg config.Config, p *provider.Provider, logger log.Log) *Server {
	s := &Server{
		cfg:      cfg,
		provider: p,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/documents/ws", s.handleSurface)
	mux.HandleFunc("/healthz", s.handleHealth)
	s.httpSrv = &http.Server{
		Addr:    cfg.Addr(),
		Handler: mux,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("server listening", log.String("addr", s.cfg.Addr()))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		http.Error(w, "missing uri", http.StatusBadRequest)
		return
	}
	backupID := r.URL.Query().Get("backup")

	doc, err := s.provider.OpenDocument(r.Context(), uri, backupID)
	if err != nil {
		s.log.Error("open document failed", log.String("uri", uri), log.Err(err))
		http.Error(w, "cannot open document", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", log.String("uri", uri), log.Err(err))
		s.provider.Release(doc)
		return
	}

	surface := newWSSurface(conn, s.cfg)
	detach := s.provider.AttachSurface(doc, surface)
	defer func() {
		detach()
		s.provider.Release(doc)
		_ = surface.Close("document released")
	}()

	s.readLoop(doc, surface, conn)
}

// readLoop feeds inbound frames to the bridge until the connection drops.
// Frames are processed sequentially, so edits apply in arrival order.
func (s *Server) readLoop(doc *document.Document, surface *wsSurface, conn *websocket.Conn) {
	logger := s.log.With(log.String("uri", doc.URI()), log.String("surface", surface.ID()))
	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("surface connection lost", log.Err(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			logger.Debug("ignoring non-text frame")
			continue
		}
		if err = s.provider.HandleIncoming(doc, surface, raw); err != nil {
			logger.Warn("frame dispatch failed", log.Err(err))
		}
	}
}
