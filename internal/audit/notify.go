package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
)

// Notifier delivers the completion signal for a terminal run. Delivery is
// fire-and-forget: implementations log failures and never return them.
type Notifier interface {
	Notify(ctx context.Context, run *model.AuditRun)
}

// LogNotifier records completions in the service log. It is the default
// when no webhook is configured.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, run *model.AuditRun) {
	zap.L().Info("audit completed",
		zap.String("run_id", run.ID),
		zap.String("owner_id", run.OwnerID),
		zap.String("status", string(run.Status)),
		zap.String("error_code", run.ErrorCode))
}

// WebhookNotifier POSTs a run summary to a configured URL.
type WebhookNotifier struct {
	url  string
	http *http.Client
}

// NewNotifier picks the notifier for the configuration: webhook when a URL
// is set, log-only otherwise.
func NewNotifier(cfg config.NotifyConfig) Notifier {
	if cfg.WebhookURL == "" {
		return LogNotifier{}
	}
	return &WebhookNotifier{
		url:  cfg.WebhookURL,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	RunID     string `json:"run_id"`
	OwnerID   string `json:"owner_id,omitempty"`
	Status    string `json:"status"`
	Score     *int   `json:"reputation_score,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, run *model.AuditRun) {
	payload := webhookPayload{
		RunID:     run.ID,
		OwnerID:   run.OwnerID,
		Status:    string(run.Status),
		ErrorCode: run.ErrorCode,
		Error:     run.Error,
	}
	if run.Result != nil {
		score := run.Result.ReputationScore
		payload.Score = &score
	}

	body, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("notification marshal failed", zap.String("run_id", run.ID), zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		zap.L().Error("notification request failed", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		zap.L().Error("notification delivery failed", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		zap.L().Error("notification rejected",
			zap.String("run_id", run.ID),
			zap.Int("status", resp.StatusCode))
	}
}
