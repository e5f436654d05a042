// middleware/auth/auth.go
package auth

import (
	"github.com/funcgate/funcgate-core/pkg/api"
	"github.com/funcgate/funcgate-core/pkg/config"
)

// TokenKey is the reserved parameter name carrying the caller token:
// a query parameter on GET, a top-level JSON field on POST.
const TokenKey = "token"

// Gate validates caller tokens against the live configuration snapshot.
// Business tokens authorize module/function endpoints; admin tokens
// authorize the reload routes. The tiers are checked independently: an
// admin token passes the business check only when the configuration lists
// it in both sets.
type Gate struct {
	cfg *config.Holder
}

func NewGate(cfg *config.Holder) *Gate { return &Gate{cfg: cfg} }

func ProvideGate(cfg *config.Holder) *Gate { return NewGate(cfg) }

// CheckBusiness authorizes a call to a module/function endpoint.
func (g *Gate) CheckBusiness(token string) *api.Error {
	if token == "" {
		return api.NewError(api.KindMissingToken, "Token is required")
	}
	if !g.cfg.Current().IsBusinessToken(token) {
		return api.NewError(api.KindInvalidToken, "Invalid token")
	}
	return nil
}

// CheckAdmin authorizes a call to an admin route. Business-only tokens are
// rejected here regardless of their business-tier validity.
func (g *Gate) CheckAdmin(token string) *api.Error {
	if token == "" {
		return api.NewError(api.KindMissingAdminToken, "Admin token is required for this operation")
	}
	if !g.cfg.Current().IsAdminToken(token) {
		return api.NewError(api.KindInvalidAdminToken, "Invalid admin token or insufficient permissions")
	}
	return nil
}
