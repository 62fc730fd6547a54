package httpapi

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready probes every dependency concurrently and answers 503 if any fails.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	results := make([]error, len(h.checks))
	var wg sync.WaitGroup
	wg.Add(len(h.checks))
	for i := range h.checks {
		go func() {
			defer wg.Done()
			results[i] = h.checks[i].Ping(ctx)
		}()
	}
	wg.Wait()

	status := http.StatusOK
	body := make(map[string]string, len(h.checks))
	for i, c := range h.checks {
		if err := results[i]; err != nil {
			status = http.StatusServiceUnavailable
			body[c.Name] = "unavailable"
			h.logger.Warn("readiness check failed", zap.String("check", c.Name), zap.Error(err))
			continue
		}
		body[c.Name] = "ok"
	}
	writeJSON(w, status, body)
}
