package utils

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultReadTimeout leaves room for multi-megabyte uploads on slow links.
	DefaultReadTimeout  = 60 * time.Second
	DefaultWriteTimeout = DefaultReadTimeout
	shutdownTimeout     = 30 * time.Second

	// A restarted child finds the inherited listener at fd 3 when this is set.
	inheritEnvKey   = "PHOTOSHARE_INHERIT_LISTENER"
	inheritEnvEntry = inheritEnvKey + "=1"
	inheritedFD     = 3
)

// Server is an http.Server that drains on SIGTERM/SIGINT and hands its
// listener to a fresh process on SIGUSR2.
type Server struct {
	*http.Server

	listener   net.Listener
	inherited  bool
	signals    chan os.Signal
	done       chan struct{}
	onShutdown []func()
	log        *zap.Logger
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
		},
		inherited: os.Getenv(inheritEnvKey) != "",
		signals:   make(chan os.Signal, 1),
		done:      make(chan struct{}),
		log:       Logger.Named("http"),
	}
}

// OnShutdown registers hooks that run after the HTTP server stopped, such as
// stopping background schedulers.
func (srv *Server) OnShutdown(fns ...func()) {
	srv.onShutdown = append(srv.onShutdown, fns...)
}

// ListenAndServe serves plain HTTP until a shutdown signal arrives.
func (srv *Server) ListenAndServe() error {
	ln, err := srv.listen(srv.Addr, ":http")
	if err != nil {
		return err
	}
	srv.listener = ln
	return srv.serve()
}

// ListenAndServeTLS serves HTTPS with the given key pair.
func (srv *Server) ListenAndServeTLS(certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if srv.TLSConfig != nil {
		cfg = srv.TLSConfig.Clone()
	}
	if cfg.NextProtos == nil {
		cfg.NextProtos = []string{"http/1.1"}
	}
	cfg.Certificates = []tls.Certificate{cert}

	ln, err := srv.listen(srv.Addr, ":https")
	if err != nil {
		return err
	}
	srv.listener = tls.NewListener(ln, cfg)
	return srv.serve()
}

func (srv *Server) serve() error {
	go srv.watchSignals()
	err := srv.Server.Serve(srv.listener)
	<-srv.done
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (srv *Server) listen(addr, fallback string) (net.Listener, error) {
	if srv.inherited {
		ln, err := net.FileListener(os.NewFile(inheritedFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	if addr == "" {
		addr = fallback
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) watchSignals() {
	signal.Notify(srv.signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
	for sig := range srv.signals {
		if sig != syscall.SIGUSR2 {
			srv.log.Info("draining connections", zap.Stringer("signal", sig))
			srv.drain()
			return
		}
		pid, err := srv.fork()
		if err != nil {
			srv.log.Error("restart failed, still serving", zap.Error(err))
			continue
		}
		srv.log.Info("handed listener to new process", zap.Int("pid", pid))
		srv.drain()
		return
	}
}

func (srv *Server) drain() {
	signal.Stop(srv.signals)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		srv.log.Error("shutdown incomplete", zap.Error(err))
	} else {
		srv.log.Info("server stopped")
	}
	for _, fn := range srv.onShutdown {
		fn()
	}
	close(srv.done)
}

// fork re-executes the binary with the listening socket at inheritedFD.
func (srv *Server) fork() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, errors.New("only plain TCP listeners can be handed over")
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != inheritEnvEntry {
			env = append(env, e)
		}
	}
	env = append(env, inheritEnvEntry)

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}

// GraceServer serves handler on addr and runs the hooks once it has shut down.
func GraceServer(addr string, handler http.Handler, onShutdown ...func()) error {
	srv := NewServer(addr, handler, DefaultReadTimeout, DefaultWriteTimeout)
	srv.OnShutdown(onShutdown...)
	return srv.ListenAndServe()
}

// GraceServerTLS is GraceServer over TLS.
func GraceServerTLS(addr, certFile, keyFile string, handler http.Handler, onShutdown ...func()) error {
	srv := NewServer(addr, handler, DefaultReadTimeout, DefaultWriteTimeout)
	srv.OnShutdown(onShutdown...)
	return srv.ListenAndServeTLS(certFile, keyFile)
}
