package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"gamescrow/internal/domain/entity"
	"gamescrow/pkg/errors"
)

// FirebaseAuthClient verifies Firebase ID tokens. Admins carry a custom
// claim, either role=admin or admin=true.
type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) Verify(ctx context.Context, idToken string) (*entity.Actor, error) {
	token, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}

	return &entity.Actor{UserID: token.UID, Role: roleFromClaims(token.Claims)}, nil
}

func roleFromClaims(claims map[string]interface{}) string {
	if role, ok := claims["role"].(string); ok && role == entity.RoleAdmin {
		return entity.RoleAdmin
	}
	if admin, ok := claims["admin"].(bool); ok && admin {
		return entity.RoleAdmin
	}
	return entity.RoleUser
}
