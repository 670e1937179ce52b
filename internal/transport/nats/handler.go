package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
	"github.com/CristianMorenoC/prueba-tecnica/internal/service"
)

// Handler subscribes to NATS command topics and delegates to the
// subscription service.
type Handler struct {
	svc  service.SubscriptionService
	nc   *nats.Conn
	subs []*nats.Subscription
}

func NewHandler(svc service.SubscriptionService, nc *nats.Conn) *Handler {
	return &Handler{svc: svc, nc: nc}
}

// Start subscribes to command topics and blocks until ctx is cancelled
// (graceful shutdown).
func (h *Handler) Start(ctx context.Context) error {
	s1, err := h.nc.QueueSubscribe("commands.subscribe", "lifecycle_group", func(m *nats.Msg) {
		var req model.SubscribeRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			slog.Error("nats: failed to unmarshal subscribe command", "error", err)
			return
		}
		if _, err := h.svc.Subscribe(ctx, req); err != nil {
			slog.Error("nats: subscribe failed", "error", err, "user_id", req.UserID, "fund_id", req.FundID)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, s1)

	s2, err := h.nc.QueueSubscribe("commands.cancel", "lifecycle_group", func(m *nats.Msg) {
		var req model.CancelRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			slog.Error("nats: failed to unmarshal cancel command", "error", err)
			return
		}
		if _, err := h.svc.Cancel(ctx, req); err != nil {
			slog.Error("nats: cancel failed", "error", err, "user_id", req.UserID, "fund_id", req.FundID)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, s2)

	slog.Info("NATS command handler is running")

	// Block until context is cancelled.
	<-ctx.Done()
	slog.Info("NATS command handler shutting down, draining subscriptions...")

	for _, s := range h.subs {
		_ = s.Drain()
	}
	return nil
}

func (h *Handler) Stop(ctx context.Context) error {
	for _, s := range h.subs {
		_ = s.Unsubscribe()
	}
	return nil
}
