package notifier

import (
	"log/slog"
	"strings"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
)

// Class is what a change event means for notifications.
type Class int

const (
	ClassIgnore Class = iota
	ClassSubscriptionCreated
	ClassSubscriptionCancelled
	ClassProfileCreated
)

func (c Class) String() string {
	switch c {
	case ClassSubscriptionCreated:
		return "subscription_created"
	case ClassSubscriptionCancelled:
		return "subscription_cancelled"
	case ClassProfileCreated:
		return "profile_created"
	default:
		return "ignore"
	}
}

type Classification struct {
	Class  Class
	UserID string
	FundID string
}

// Classify reduces a raw change event to at most one notification intent.
// Amount-only subscription edits and profile updates never notify.
func Classify(ev model.ChangeEvent) Classification {
	userID, ok := strings.CutPrefix(ev.PK, model.KeyPrefixUser)
	if !ok || userID == "" {
		return Classification{Class: ClassIgnore}
	}

	if fundID, ok := strings.CutPrefix(ev.SK, model.KeyPrefixSub); ok {
		c := Classification{Class: ClassIgnore, UserID: userID, FundID: fundID}
		switch ev.Kind {
		case model.EventInsert:
			c.Class = ClassSubscriptionCreated
		case model.EventModify:
			if ev.Attributes.Status == model.StatusCancelled {
				c.Class = ClassSubscriptionCancelled
			}
		case model.EventRemove:
			// Subscriptions are never hard-deleted; a REMOVE here is
			// unexpected and only logged.
			slog.Warn("notifier: unexpected REMOVE for subscription", "pk", ev.PK, "sk", ev.SK)
		}
		return c
	}

	if ev.SK == model.KeyProfile && ev.Kind == model.EventInsert {
		return Classification{Class: ClassProfileCreated, UserID: userID}
	}
	return Classification{Class: ClassIgnore}
}

// DedupKey identifies one meaningful event across at-least-once redeliveries.
func DedupKey(ev model.ChangeEvent) string {
	return ev.PK + "|" + ev.SK + "|" + string(ev.Kind) + "|" + ev.SequenceNumber
}
