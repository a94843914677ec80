package principal

import "github.com/gin-gonic/gin"

const identityKey = "auth.identity"

// Identity is what the authorization gate attaches to a request: either a
// resolved Principal, or the anonymous marker plus the derived session
// identifier. Exactly one of the two is populated.
type Identity struct {
	Principal *Principal
	SessionID string
}

// Anonymous reports whether this identity carries no authenticated principal.
func (id *Identity) Anonymous() bool {
	return id.Principal == nil
}

// SetIdentity attaches the request identity to the gin.Context.
func SetIdentity(c *gin.Context, id *Identity) {
	c.Set(identityKey, id)
}

// GetIdentity retrieves the request identity from the gin.Context.
// Returns nil if the gate was not applied to this route.
func GetIdentity(c *gin.Context) *Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*Identity); ok {
			return id
		}
	}
	return nil
}
