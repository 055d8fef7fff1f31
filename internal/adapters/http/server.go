// Package http serves receiver stats, Prometheus metrics and a live frame
// viewer over HTTP.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ServerConfig wires the handlers served by Server.
type ServerConfig struct {
	Addr string

	// Stats returns a JSON-serializable snapshot for /stats.
	Stats func() any

	// Metrics serves /metrics. Optional.
	Metrics http.Handler

	// Viewer backs /frame.jpg and /ws. Optional.
	Viewer *Viewer

	Logger zerolog.Logger
}

// Server is the stats and viewer HTTP server.
type Server struct {
	cfg      ServerConfig
	router   *gin.Engine
	started  time.Time
	upgrader websocket.Upgrader
}

// NewServer builds the router.
func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Logger))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:     cfg,
		router:  r,
		started: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
	}
	s.registerRoutes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
		})
	})

	s.router.GET("/stats", func(c *gin.Context) {
		if s.cfg.Stats == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, s.cfg.Stats())
	})

	if s.cfg.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.cfg.Metrics))
	}

	if s.cfg.Viewer != nil {
		s.router.GET("/", func(c *gin.Context) {
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(viewerPage))
		})
		s.router.GET("/frame.jpg", s.latestFrame)
		s.router.GET("/ws", s.websocket)
	}
}

func (s *Server) latestFrame(c *gin.Context) {
	snap, ok := s.cfg.Viewer.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no frame received yet"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Frame-Sequence", strconv.FormatUint(snap.Sequence, 10))
	c.Data(http.StatusOK, "image/jpeg", snap.Payload)
}

func (s *Server) websocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	s.cfg.Viewer.attach(c.Request.Context(), conn)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

const viewerPage = `<!doctype html>
<html>
<head><title>framecast</title></head>
<body style="margin:0;background:#111">
<img id="frame" style="max-width:100%" alt="waiting for frames">
<script>
const img = document.getElementById("frame");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.binaryType = "blob";
ws.onmessage = (ev) => {
  const url = URL.createObjectURL(ev.data);
  img.onload = () => URL.revokeObjectURL(url);
  img.src = url;
};
</script>
</body>
</html>
`
