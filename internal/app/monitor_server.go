package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"trades-gate/internal/monitor"
	"trades-gate/internal/risk"
)

const maxRequestBody = 1 << 20

func startMonitorServer(ctx context.Context, orch *Orchestrator, port int, logger *zap.Logger) error {
	if port <= 0 {
		return fmt.Errorf("app: 监控端口无效: %d", port)
	}

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMonitorHandler(orch, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("关闭监控服务失败", zap.Error(err))
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("监控服务异常", zap.Error(err))
		}
	}()

	logger.Info("监控接口已启动", zap.String("addr", addr))
	return nil
}

// newMonitorHandler 提供事件查询以及准入评估、结算回灌接口。
func newMonitorHandler(orch *Orchestrator, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := monitor.EventQuery{Limit: 200}
		if qs := q.Get("limit"); qs != "" {
			if v, err := strconv.Atoi(qs); err == nil && v > 0 {
				query.Limit = min(v, 1000)
			}
		}
		if typ := strings.TrimSpace(q.Get("type")); typ != "" {
			query.Type = monitor.EventType(strings.ToLower(typ))
		}
		if since := strings.TrimSpace(q.Get("since")); since != "" {
			ts, err := time.Parse(time.RFC3339, since)
			if err != nil {
				http.Error(w, "since 必须为 RFC3339 时间", http.StatusBadRequest)
				return
			}
			query.Since = ts
		}

		events, err := orch.Monitor().ListEvents(r.Context(), query)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, events, logger)
	})

	mux.HandleFunc("POST /evaluate", func(w http.ResponseWriter, r *http.Request) {
		var p risk.Proposal
		if err := decodeBody(w, r, &p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, orch.Evaluate(r.Context(), p), logger)
	})

	mux.HandleFunc("POST /settle", func(w http.ResponseWriter, r *http.Request) {
		var s risk.Settlement
		if err := decodeBody(w, r, &s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sample, err := orch.Settle(r.Context(), s)
		if sample.Symbol == "" && err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			logger.Warn("结算已计入窗口但日志写入失败", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, sample, logger)
	})

	return mux
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("请求体无效: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入监控响应失败", zap.Error(err))
	}
}
