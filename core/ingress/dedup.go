package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/packhost/packhost/core/infra/kvstore"
	"github.com/packhost/packhost/core/infra/metrics"
)

// Verdict is the ledger's answer for one event id.
type Verdict string

const (
	VerdictFresh     Verdict = "fresh"
	VerdictDuplicate Verdict = "duplicate"
)

// DedupRecord is what the ledger persists per observed event id. The claim
// token distinguishes which delivery won when duplicates race.
type DedupRecord struct {
	EventID  string    `json:"event_id"`
	Tenant   string    `json:"tenant"`
	Provider string    `json:"provider"`
	SeenAt   time.Time `json:"seen_at"`
	Claim    string    `json:"claim"`
}

// Ledger suppresses reprocessing of provider event ids within a retention
// window. Membership is claimed with an atomic set-if-absent, so concurrent
// deliveries of the same event resolve to exactly one fresh verdict.
type Ledger struct {
	store     kvstore.Store
	retention time.Duration
	metrics   metrics.Metrics
}

func NewLedger(store kvstore.Store, retention time.Duration, m metrics.Metrics) *Ledger {
	if retention <= 0 {
		retention = 15 * time.Minute
	}
	if m == nil {
		m = metrics.Noop{}
	}
	return &Ledger{store: store, retention: retention, metrics: m}
}

// Observe records the event id and reports whether it was seen before within
// the retention window. An envelope with no event id at all is always fresh:
// there is nothing to dedup on, and dropping it would lose real events.
func (l *Ledger) Observe(ctx context.Context, env *Envelope) (Verdict, error) {
	if l == nil || l.store == nil {
		return "", fmt.Errorf("dedup ledger not configured")
	}
	eventID := env.EventID()
	if eventID == "" {
		l.metrics.IncDedup(string(VerdictFresh))
		return VerdictFresh, nil
	}
	record, err := json.Marshal(DedupRecord{
		EventID:  eventID,
		Tenant:   env.Tenant,
		Provider: env.Provider,
		SeenAt:   time.Now().UTC(),
		Claim:    uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("encode dedup record: %w", err)
	}
	ok, err := l.store.SetNX(ctx, l.key(env.Tenant, env.Provider, eventID), record, l.retention)
	if err != nil {
		return "", fmt.Errorf("dedup claim: %w", err)
	}
	verdict := VerdictDuplicate
	if ok {
		verdict = VerdictFresh
	}
	l.metrics.IncDedup(string(verdict))
	return verdict, nil
}

func (l *Ledger) key(tenant, provider, eventID string) string {
	return "dedup:" + tenant + ":" + provider + ":" + eventID
}
