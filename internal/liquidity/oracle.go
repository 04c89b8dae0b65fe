package liquidity

import (
	"context"
	"strings"

	"trades-gate/internal/config"
)

// StaticOracle 根据配置中的固定路由返回兑换路径。
type StaticOracle struct {
	routes map[string]Path
}

// NewStaticOracle 由路由配置构造静态路径表，同一方向后配置的覆盖先配置的。
func NewStaticOracle(routes []config.RouteConfig) *StaticOracle {
	o := &StaticOracle{routes: make(map[string]Path, len(routes))}
	for _, r := range routes {
		legs := make([]Leg, 0, len(r.Legs))
		for _, l := range r.Legs {
			legs = append(legs, Leg{
				Pair:  strings.TrimSpace(l.Pair),
				Venue: strings.TrimSpace(l.Venue),
			})
		}
		o.routes[routeKey(r.From, r.To)] = Path{Legs: legs}
	}
	return o
}

// FindPath 查找路径，未配置时返回 nil。
func (o *StaticOracle) FindPath(_ context.Context, from, to string) (*Path, error) {
	path, ok := o.routes[routeKey(from, to)]
	if !ok {
		return nil, nil
	}
	legs := append([]Leg(nil), path.Legs...)
	return &Path{Legs: legs}, nil
}

// Len 返回已配置的路由数量。
func (o *StaticOracle) Len() int {
	return len(o.routes)
}

func routeKey(from, to string) string {
	return strings.ToUpper(strings.TrimSpace(from)) + "->" + strings.ToUpper(strings.TrimSpace(to))
}
