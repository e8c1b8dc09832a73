// Package privacy gates message processing on the sender's consent state.
// No command executes for a sender who has not consented or who opted out.
package privacy

import (
	"context"
	"fmt"

	"gastobot/internal/domain"
)

// Gate is a pure decision over the consent store; it keeps no state of its
// own. Consent capture itself is a router concern.
type Gate struct {
	consents domain.ConsentStore
}

func NewGate(consents domain.ConsentStore) *Gate {
	return &Gate{consents: consents}
}

func (g *Gate) Check(ctx context.Context, senderID string) (domain.GateDecision, error) {
	record, err := g.consents.GetConsent(ctx, senderID)
	if err != nil {
		return "", fmt.Errorf("consent lookup %s: %w", senderID, err)
	}

	switch {
	case record == nil:
		return domain.GateNeedsConsent, nil
	case record.OptedOut:
		return domain.GateOptedOut, nil
	case !record.Granted:
		return domain.GateNeedsConsent, nil
	default:
		return domain.GateProceed, nil
	}
}
