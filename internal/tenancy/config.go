package tenancy

import "time"

// SharedResourceTables lists the tables exempt from workspace filtering per
// Configurable via QueryFilterConfig.SharedResourceTables.
var SharedResourceTables = []string{
	"market_data", "market_data_daily", "exchange_info", "symbols",
	"indices", "sectors", "economic_indicators", "benchmark_returns",
	"risk_free_rates", "dividends_calendar", "earnings_calendar",
}

// QueryFilterConfig parameterizes the row-level query filter.
type QueryFilterConfig struct {
	EnforceRowLevelSecurity  bool
	SharedResourceTables     []string
	AllowedCrossWorkspaceRoles []Role
	AuditEnabled             bool
	AuditMaxEntries          int
}

func DefaultQueryFilterConfig() QueryFilterConfig {
	return QueryFilterConfig{
		EnforceRowLevelSecurity:    true,
		SharedResourceTables:       append([]string(nil), SharedResourceTables...),
		AllowedCrossWorkspaceRoles: []Role{RoleAdmin},
		AuditEnabled:               true,
		AuditMaxEntries:            10_000,
	}
}

func (c QueryFilterConfig) Validate() error {
	if c.AuditMaxEntries <= 0 {
		return &ConfigError{Field: "AuditMaxEntries", Reason: "must be positive"}
	}
	return nil
}

// PolicyEngineConfig parameterizes the policy evaluator's cache.
type PolicyEngineConfig struct {
	CacheTTL time.Duration
}

func DefaultPolicyEngineConfig() PolicyEngineConfig {
	return PolicyEngineConfig{CacheTTL: 30 * time.Second}
}

func (c PolicyEngineConfig) Validate() error {
	if c.CacheTTL < 0 {
		return &ConfigError{Field: "CacheTTL", Reason: "must be non-negative"}
	}
	return nil
}

// MiddlewareConfig parameterizes the isolation middleware.
type MiddlewareConfig struct {
	EnforceIPRestriction     bool
	MaxWorkspacesPerIP       int
	RateLimitPerWorkspace    int
	RateLimitWindow          time.Duration
	BlockCrossTenantRequests bool
	AuditMaxEntries          int
	ContextHistorySize       int
}

func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		EnforceIPRestriction:     false,
		MaxWorkspacesPerIP:       5,
		RateLimitPerWorkspace:    100,
		RateLimitWindow:          60 * time.Second,
		BlockCrossTenantRequests: true,
		AuditMaxEntries:          10_000,
		ContextHistorySize:       1000,
	}
}

func (c MiddlewareConfig) Validate() error {
	switch {
	case c.MaxWorkspacesPerIP <= 0:
		return &ConfigError{Field: "MaxWorkspacesPerIP", Reason: "must be positive"}
	case c.RateLimitPerWorkspace <= 0:
		return &ConfigError{Field: "RateLimitPerWorkspace", Reason: "must be positive"}
	case c.RateLimitWindow <= 0:
		return &ConfigError{Field: "RateLimitWindow", Reason: "must be positive"}
	case c.AuditMaxEntries <= 0:
		return &ConfigError{Field: "AuditMaxEntries", Reason: "must be positive"}
	}
	return nil
}
