package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rx3lixir/corrector-client/internal/logger"
)

// Server отдает состояние проверок по протоколу grpc.health.v1.
// Проверки перезапускаются каждые interval, статус сервиса обновляется по сводке
type Server struct {
	serviceName string
	version     string
	address     string
	timeout     time.Duration
	interval    time.Duration
	checkers    map[string]Checker

	log    logger.Logger
	grpc   *grpc.Server
	health *grpchealth.Server

	mu     sync.RWMutex
	last   Report
	stop   chan struct{}
	closed sync.Once
}

type Option func(*Server)

func WithServiceName(name string) Option {
	return func(s *Server) {
		s.serviceName = name
	}
}

func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithAddress адрес прослушивания, например ":8082"
func WithAddress(addr string) Option {
	return func(s *Server) {
		s.address = addr
	}
}

// WithTimeout таймаут одной проверки
func WithTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithInterval период перезапуска проверок
func WithInterval(interval time.Duration) Option {
	return func(s *Server) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithChecker добавляет именованную проверку
func WithChecker(name string, c Checker) Option {
	return func(s *Server) {
		if c != nil {
			s.checkers[name] = c
		}
	}
}

func NewServer(log logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		serviceName: "corrector",
		version:     "dev",
		address:     ":8082",
		timeout:     5 * time.Second,
		interval:    15 * time.Second,
		checkers:    make(map[string]Checker),
		log:         log,
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.grpc = grpc.NewServer()
	s.health = grpchealth.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	return s
}

// Check прогоняет все проверки один раз
func (s *Server) Check(ctx context.Context) Report {
	report := Run(ctx, s.timeout, s.checkers)
	report.Service = s.serviceName
	report.Version = s.version
	return report
}

// Last последняя сводка, полученная сервером
func (s *Server) Last() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Start слушает адрес из опций и блокируется до остановки
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(lis)
}

// Serve обслуживает готовый listener. Первая сводка снимается до начала
// приема запросов, так что клиент сразу видит реальный статус
func (s *Server) Serve(lis net.Listener) error {
	s.refresh()

	go s.loop()

	s.log.Info("Health server is listening",
		"address", lis.Addr().String(),
		"service", s.serviceName,
		"version", s.version,
	)

	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

func (s *Server) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *Server) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout+time.Second)
	defer cancel()

	report := s.Check(ctx)

	s.mu.Lock()
	prev := s.last.Status
	s.last = report
	s.mu.Unlock()

	status := healthpb.HealthCheckResponse_SERVING
	if report.Status != StatusUp {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.serviceName, status)

	if prev != report.Status {
		args := []any{"status", report.Status}
		for _, name := range report.Names() {
			if res := report.Checks[name]; res.Status != StatusUp {
				args = append(args, name, res.Error)
			}
		}
		s.log.Info("Health status changed", args...)
	}
}

// Shutdown останавливает периодические проверки и сервер.
// Если ctx истекает раньше, активные вызовы обрываются
func (s *Server) Shutdown(ctx context.Context) error {
	s.closed.Do(func() {
		close(s.stop)
		s.health.Shutdown()
	})

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		return ctx.Err()
	}
}
