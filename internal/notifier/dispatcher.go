package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
)

// BatchResult is the aggregate tally for one change batch.
type BatchResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Dispatcher turns classified change events into outbound notifications.
// Events in a batch are independent: they run concurrently, each under its
// own timeout, and one failure never aborts the siblings.
type Dispatcher struct {
	sender  Sender
	dedup   Deduper
	workers int
	timeout time.Duration
}

func NewDispatcher(sender Sender, dedup Deduper, workers int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{sender: sender, dedup: dedup, workers: workers, timeout: timeout}
}

// Process handles one batch and returns the tally. It never returns an
// error: per-event failures are logged and counted.
func (d *Dispatcher) Process(ctx context.Context, batch []model.ChangeEvent) BatchResult {
	var (
		mu  sync.Mutex
		res BatchResult
	)

	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	for _, ev := range batch {
		g.Go(func() error {
			out := d.processEvent(ctx, ev)
			mu.Lock()
			switch out {
			case outcomeProcessed:
				res.Processed++
			case outcomeSkipped:
				res.Skipped++
			case outcomeFailed:
				res.Errors++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return res
}

func (d *Dispatcher) processEvent(ctx context.Context, ev model.ChangeEvent) outcome {
	cls := Classify(ev)
	if cls.Class == ClassIgnore {
		return outcomeSkipped
	}

	key := DedupKey(ev)
	seen, err := d.dedup.Seen(ctx, key)
	if err != nil {
		slog.Error("notifier: dedup check failed", "key", key, "error", err)
		return outcomeFailed
	}
	if seen {
		slog.Info("notifier: duplicate event skipped", "key", key, "class", cls.Class.String())
		return outcomeSkipped
	}

	evCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.dispatch(evCtx, cls, ev); err != nil {
		slog.Error("notifier: dispatch failed",
			"class", cls.Class.String(),
			"user_id", cls.UserID,
			"fund_id", cls.FundID,
			"error", err,
		)
		// Release the mark so an at-least-once redelivery can retry.
		if ferr := d.dedup.Forget(context.WithoutCancel(ctx), key); ferr != nil {
			slog.Error("notifier: failed to release dedup key", "key", key, "error", ferr)
		}
		return outcomeFailed
	}
	return outcomeProcessed
}

func (d *Dispatcher) dispatch(ctx context.Context, cls Classification, ev model.ChangeEvent) error {
	switch cls.Class {
	case ClassSubscriptionCreated, ClassSubscriptionCancelled:
		return d.notifySubscription(ctx, cls, ev.Attributes)
	case ClassProfileCreated:
		return d.welcomeProfile(ctx, cls, ev.Attributes)
	}
	return nil
}

// notifySubscription sends on the user's preferred channel. Missing contact
// info is not an error: the event completes without sending.
func (d *Dispatcher) notifySubscription(ctx context.Context, cls Classification, a model.RecordAttributes) error {
	created := cls.Class == ClassSubscriptionCreated
	switch a.NotifyChannel {
	case model.ChannelEmail:
		if a.Email == "" {
			slog.Info("notifier: no email on record, nothing to send", "user_id", cls.UserID, "fund_id", cls.FundID)
			return nil
		}
		subject, body := subscriptionEmail(cls.FundID, a.Name, created)
		return d.sender.SendEmail(ctx, a.Email, subject, body)
	case model.ChannelSMS:
		if a.Phone == "" {
			slog.Info("notifier: no phone on record, nothing to send", "user_id", cls.UserID, "fund_id", cls.FundID)
			return nil
		}
		return d.sender.SendSMS(ctx, a.Phone, subscriptionSMS(cls.FundID, created))
	default:
		slog.Info("notifier: no notify channel on record, nothing to send", "user_id", cls.UserID, "fund_id", cls.FundID)
		return nil
	}
}

// welcomeProfile registers the new user's contacts with the delivery
// subsystem and sends the welcome email. A registration failure fails the
// event; it must not be swallowed.
func (d *Dispatcher) welcomeProfile(ctx context.Context, cls Classification, a model.RecordAttributes) error {
	if a.Email != "" {
		if _, err := d.sender.RegisterContact(ctx, a.Email, cls.UserID); err != nil {
			return fmt.Errorf("register email: %w", err)
		}
	}
	if a.Phone != "" {
		if _, err := d.sender.RegisterContact(ctx, a.Phone, cls.UserID); err != nil {
			return fmt.Errorf("register phone: %w", err)
		}
	}
	if a.Email == "" {
		slog.Info("notifier: profile has no email, skipping welcome", "user_id", cls.UserID)
		return nil
	}
	subject, body := welcomeEmail(a.Name, a.Email, a.Phone, a.NotifyChannel)
	if err := d.sender.SendEmail(ctx, a.Email, subject, body); err != nil {
		return fmt.Errorf("welcome email: %w", err)
	}
	return nil
}

func subscriptionEmail(fundID, name string, created bool) (subject, body string) {
	if name == "" {
		name = "Usuario"
	}
	if created {
		return fmt.Sprintf("Suscripción Creada - Fondo %s", fundID),
			fmt.Sprintf("Hola %s, tu suscripción al fondo %s ha sido creada exitosamente.", name, fundID)
	}
	return fmt.Sprintf("Suscripción Cancelada - Fondo %s", fundID),
		fmt.Sprintf("Hola %s, tu suscripción al fondo %s ha sido cancelada.", name, fundID)
}

func subscriptionSMS(fundID string, created bool) string {
	if created {
		return fmt.Sprintf("Tu suscripción al fondo %s ha sido creada.", fundID)
	}
	return fmt.Sprintf("Tu suscripción al fondo %s ha sido cancelada.", fundID)
}

func welcomeEmail(name, email, phone string, channel model.NotifyChannel) (subject, body string) {
	if name == "" {
		name = "Usuario"
	}
	if phone == "" {
		phone = "No proporcionado"
	}
	if channel == "" {
		channel = model.ChannelEmail
	}
	subject = "Bienvenido - Perfil Creado"
	body = fmt.Sprintf(
		"¡Hola %s! Tu perfil ha sido creado exitosamente. Ya puedes comenzar a gestionar tus suscripciones a fondos.\n"+
			"Email: %s\nTeléfono: %s\nCanal de notificaciones: %s",
		name, email, phone, channel)
	return subject, body
}
