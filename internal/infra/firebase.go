// README: Firebase ID-token verification boundary for the API.
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// FirebaseToken is the slice of a verified ID token the dispatch API cares
// about: the caller's uid and the role custom claim. Everything else on the
// raw token stays behind this boundary.
type FirebaseToken struct {
	UID  string
	Role string
}

// TokenVerifier turns a raw bearer token into a FirebaseToken. The auth
// middleware takes a nil verifier to run with auth disabled in development.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error)
}

type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier builds a TokenVerifier over the Firebase Admin SDK.
// With an empty credentialsFile the SDK falls back to application-default
// credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	out := &FirebaseToken{UID: token.UID}
	if role, ok := token.Claims["role"].(string); ok {
		out.Role = role
	}
	return out, nil
}
