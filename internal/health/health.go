// Package health отдаёт JSON-состояние зависимостей витрины и пробы для оркестратора.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

const (
	defaultCheckTimeout  = 2 * time.Second
	defaultSlowThreshold = 500 * time.Millisecond
)

// Status представляет статус компонента
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check результат проверки одного компонента.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response тело ответа /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет один компонент. Реализация обязана уважать ctx.
type Checker interface {
	Check(ctx context.Context) Check
}

// Handler собирает проверки хранилища и Redis.
type Handler struct {
	mu        sync.RWMutex
	checkers  map[string]Checker
	version   string
	startTime time.Time
	now       func() time.Time
}

// NewHandler создаёт health handler для указанной версии сборки.
func NewHandler(version string) *Handler {
	return &Handler{
		checkers:  make(map[string]Checker),
		version:   version,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// RegisterChecker регистрирует или заменяет проверку компонента.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	if checker == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// Snapshot выполняет все проверки параллельно.
func (h *Handler) Snapshot(ctx context.Context) Response {
	h.mu.RLock()
	names := make([]string, 0, len(h.checkers))
	checkers := make([]Checker, 0, len(h.checkers))
	for name, checker := range h.checkers {
		names = append(names, name)
		checkers = append(checkers, checker)
	}
	h.mu.RUnlock()

	results := make([]Check, len(checkers))
	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, checker Checker) {
			defer wg.Done()
			results[i] = checker.Check(ctx)
		}(i, checker)
	}
	wg.Wait()

	checks := make(map[string]Check, len(results))
	for i, check := range results {
		checks[names[i]] = check
	}

	return Response{
		Status:        overall(results),
		Timestamp:     h.now().UTC(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}
}

// ServeHTTP отвечает 503, если хотя бы одна проверка unhealthy.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := h.Snapshot(r.Context())

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// LivenessHandler простой liveness probe (всегда возвращает 200)
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadinessHandler не пускает трафик, пока хранилище недоступно.
// Degraded считается готовностью.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if h.Snapshot(r.Context()).Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func overall(checks []Check) Status {
	status := StatusHealthy
	for _, check := range checks {
		switch check.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// PingChecker оборачивает Ping хранилища или клиента.
type PingChecker struct {
	name          string
	ping          func(ctx context.Context) error
	timeout       time.Duration
	slowThreshold time.Duration
}

// PingOption настраивает PingChecker.
type PingOption func(*PingChecker)

// WithTimeout ограничивает время одного ping.
func WithTimeout(timeout time.Duration) PingOption {
	return func(c *PingChecker) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithSlowThreshold задаёт длительность, после которой успешный ping считается degraded.
func WithSlowThreshold(threshold time.Duration) PingOption {
	return func(c *PingChecker) {
		if threshold > 0 {
			c.slowThreshold = threshold
		}
	}
}

// NewPingChecker создаёт проверку поверх функции ping.
func NewPingChecker(name string, ping func(ctx context.Context) error, opts ...PingOption) *PingChecker {
	c := &PingChecker{
		name:          name,
		ping:          ping,
		timeout:       defaultCheckTimeout,
		slowThreshold: defaultSlowThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check выполняет ping с таймаутом.
func (c *PingChecker) Check(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.ping(ctx)
	duration := time.Since(start)

	check := Check{Name: c.name, Status: StatusHealthy, DurationMs: duration.Milliseconds()}
	switch {
	case err != nil:
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	case duration > c.slowThreshold:
		check.Status = StatusDegraded
		check.Message = "slow response"
	}
	return check
}

// Names возвращает зарегистрированные проверки в алфавитном порядке.
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
