// Package access evaluates view/post permission from the viewer's
// subscription tier and a channel's access level.
//
// The rules are a gate for store mutation, not a security boundary: the
// remote service re-checks everything server-side. Unknown access levels
// default to permissive for backward compatibility with older catalogs.
package access

import (
	"strings"

	"github.com/tickerdesk/chatsync/pkg/chat"
)

// Tier is the viewer's subscription level. It is recomputed whenever the
// subscription status changes and never cached beyond the session.
type Tier string

const (
	TierFree       Tier = "FREE"
	TierPremium    Tier = "PREMIUM"
	TierElite      Tier = "ELITE"
	TierAdmin      Tier = "ADMIN"
	TierSuperAdmin Tier = "SUPER_ADMIN"
)

// TierFromSubscription derives the viewer tier from the raw subscription
// status string provided by the session context.
func TierFromSubscription(status string) Tier {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "super_admin", "superadmin":
		return TierSuperAdmin
	case "admin", "staff":
		return TierAdmin
	case "elite", "elite_active":
		return TierElite
	case "premium", "premium_active", "active":
		return TierPremium
	default:
		return TierFree
	}
}

func (t Tier) isAdmin() bool {
	return t == TierAdmin || t == TierSuperAdmin
}

func (t Tier) atLeastElite() bool {
	return t == TierElite || t.isAdmin()
}

func (t Tier) atLeastPremium() bool {
	return t == TierPremium || t.atLeastElite()
}

// CanView reports whether the tier may read the channel.
func CanView(tier Tier, ch chat.Channel) bool {
	switch ch.AccessLevel {
	case chat.AccessAdminOnly:
		return tier.isAdmin()
	case chat.AccessReadOnly, chat.AccessOpen, chat.AccessFree:
		return true
	case chat.AccessPremium:
		return tier.atLeastPremium()
	case chat.AccessElite:
		return tier.atLeastElite()
	default:
		return true
	}
}

// CanPost reports whether the tier may write to the channel. Callers must
// check this before any optimistic apply; a false result forbids every
// store mutation.
func CanPost(tier Tier, ch chat.Channel) bool {
	if ch.Locked {
		return tier.isAdmin()
	}
	switch ch.AccessLevel {
	case chat.AccessAdminOnly:
		return tier.isAdmin()
	case chat.AccessReadOnly:
		return tier.isAdmin()
	case chat.AccessOpen, chat.AccessFree:
		return true
	case chat.AccessPremium:
		return tier.atLeastPremium()
	case chat.AccessElite:
		return tier.atLeastElite()
	default:
		return true
	}
}
