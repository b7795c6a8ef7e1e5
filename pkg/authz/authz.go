package authz

import (
	"amulet-controlplane/pkg/config"

	"github.com/casbin/casbin/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("authz", fx.Provide(New))

// New loads the casbin enforcer from the configured model/policy files.
// Returns nil when access control is not configured; middleware treats nil
// as allow-all for authenticated operators.
func New(cfg *config.Config) (*casbin.Enforcer, error) {
	ac := cfg.AccessControl
	if ac.Model == "" || ac.Policy == "" {
		return nil, nil
	}

	enforcer, err := casbin.NewEnforcer(ac.Model, ac.Policy)
	if err != nil {
		return nil, err
	}

	zap.L().Info("access control policy loaded",
		zap.String("model", ac.Model),
		zap.String("policy", ac.Policy),
	)
	return enforcer, nil
}
