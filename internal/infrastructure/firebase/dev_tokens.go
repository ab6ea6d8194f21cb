package firebase

import (
	"context"

	"gamescrow/internal/domain/entity"
)

// GenerateCustomToken mints a custom token carrying the role claim. The
// client exchanges it for an ID token with the Firebase SDK.
func (f *FirebaseAuthClient) GenerateCustomToken(ctx context.Context, uid, role string) (string, error) {
	claims := map[string]interface{}{}
	if role == entity.RoleAdmin {
		claims["role"] = entity.RoleAdmin
	}
	return f.client.CustomTokenWithClaims(ctx, uid, claims)
}
