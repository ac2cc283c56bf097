package pointsservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	pointsdomain "github.com/Black-And-White-Club/points-ledger/app/modules/points/domain"
	"github.com/Black-And-White-Club/points-ledger/app/shared/attr"
	"github.com/uptrace/bun"
)

// CategoryHonorAward is the policy category for the points granted per honor.
const CategoryHonorAward = "honors.award"

// BuiltinAwardValue applies when neither the organization nor configuration
// sets a value.
const BuiltinAwardValue = 5

// PolicyResolver resolves organization point values. Lookup order is the
// organization's point_system_rules setting, then configured defaults, then
// BuiltinAwardValue.
type PolicyResolver struct {
	settings SettingsStore
	defaults map[string]int
}

func NewPolicyResolver(settings SettingsStore, defaults map[string]int) *PolicyResolver {
	return &PolicyResolver{settings: settings, defaults: defaults}
}

// ResolveAwardValue returns the integer value for category. It never writes.
func (p *PolicyResolver) ResolveAwardValue(ctx context.Context, db bun.IDB, logger *slog.Logger, orgID pointsdomain.OrganizationID, category string) (int, error) {
	if p.settings != nil {
		raw, found, err := p.settings.PointSystemRules(ctx, db, orgID)
		if err != nil {
			return 0, fmt.Errorf("failed to read point system rules: %w", err)
		}
		if found {
			if v, ok := lookupRule(raw, category, logger); ok {
				return v, nil
			}
		}
	}
	if v, ok := p.defaults[category]; ok {
		return v, nil
	}
	return BuiltinAwardValue, nil
}

// lookupRule walks a dotted path through a JSON object. Only integral
// numbers count as a value.
func lookupRule(raw []byte, category string, logger *slog.Logger) (int, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var node any
	if err := dec.Decode(&node); err != nil {
		if logger != nil {
			logger.Warn("Ignoring malformed point system rules",
				attr.String("category", category),
				attr.Error(err),
			)
		}
		return 0, false
	}

	for _, part := range strings.Split(category, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return 0, false
		}
		if node, ok = obj[part]; !ok {
			return 0, false
		}
	}

	num, ok := node.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := num.Int64(); err == nil {
		if i > math.MaxInt32 || i < math.MinInt32 {
			return 0, false
		}
		return int(i), true
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
