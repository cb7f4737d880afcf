package quotagate

import (
	"github.com/yourusername/quotagate/middleware"
	"github.com/yourusername/quotagate/quota"
)

// Re-export main types for convenience
type (
	Params          = quota.Params
	Result          = quota.Result
	Tier            = quota.Tier
	Tiers           = quota.Tiers
	Override        = quota.Override
	Evaluator       = quota.Evaluator
	EvaluatorConfig = quota.EvaluatorConfig
	Quota           = middleware.Quota
	QuotaConfig     = middleware.QuotaConfig
)

var (
	// NewEvaluator creates a quota evaluator
	NewEvaluator = quota.NewEvaluator

	// NewQuota creates the HTTP enforcement middleware
	NewQuota = middleware.NewQuota

	// BuiltinTiers returns the default tier table
	BuiltinTiers = quota.BuiltinTiers
)
