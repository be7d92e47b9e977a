package runtime

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/pactpoint/backend/pkg/logger"
)

// httpService runs the HTTP server as a lifecycle-managed component. Binding
// happens in Start so address conflicts fail startup instead of surfacing
// later from the serve loop.
type httpService struct {
	addr            string
	shutdownTimeout time.Duration
	server          *http.Server
	listener        net.Listener
	errCh           chan error
	log             *logger.Logger
}

func newHTTPService(addr string, handler http.Handler, shutdownTimeout time.Duration, log *logger.Logger) *httpService {
	return &httpService{
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		errCh: make(chan error, 1),
		log:   log,
	}
}

func (s *httpService) Name() string { return "http-server" }

// Addr returns the bound address, which differs from the configured one when
// listening on port 0.
func (s *httpService) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Err reports a serve-loop failure, if any.
func (s *httpService) Err() <-chan error { return s.errCh }

func (s *httpService) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server failed")
			s.errCh <- err
		}
	}()
	return nil
}

func (s *httpService) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
