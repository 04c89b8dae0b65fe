package liquidity

import (
	"strings"

	"trades-gate/internal/config"
)

// VenuePolicy 为交易所独占策略：启用时每一段都必须在指定交易所执行。
type VenuePolicy struct {
	Name         string
	AllowedVenue string
	Enabled      bool
}

// PolicyFromConfig 由配置构造独占策略。
func PolicyFromConfig(cfg config.VenuePolicyConfig) VenuePolicy {
	return VenuePolicy{
		Name:         strings.TrimSpace(cfg.Name),
		AllowedVenue: strings.TrimSpace(cfg.AllowedVenue),
		Enabled:      cfg.Enabled,
	}
}

// Active 表示策略是否生效。
func (p VenuePolicy) Active() bool {
	return p.Enabled && p.AllowedVenue != ""
}

// Allows 判断某个交易所是否被允许，空交易所视为不允许。
func (p VenuePolicy) Allows(venue string) bool {
	venue = strings.TrimSpace(venue)
	return venue != "" && strings.EqualFold(venue, p.AllowedVenue)
}

// Label 返回用于原因文案的策略名。
func (p VenuePolicy) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return strings.ToUpper(p.AllowedVenue) + "_ONLY"
}
