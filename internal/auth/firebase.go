package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"krishilink/api/internal/config"
)

// ErrNoEmail is returned for tokens of accounts without an email address.
// Crops and interests are keyed by email, so such accounts cannot act.
var ErrNoEmail = errors.New("token carries no email claim")

// TokenVerifier checks an ID token and returns the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

// Identity is who a verified token belongs to.
type Identity struct {
	UID     string
	Email   string
	Name    string
	Picture string
}

// IdentityFromToken reads the standard profile claims of a verified token.
func IdentityFromToken(token *fbauth.Token) (*Identity, error) {
	claim := func(key string) string {
		v, _ := token.Claims[key].(string)
		return v
	}
	id := &Identity{
		UID:     token.UID,
		Email:   strings.TrimSpace(claim("email")),
		Name:    claim("name"),
		Picture: claim("picture"),
	}
	if id.Email == "" {
		return nil, ErrNoEmail
	}
	return id, nil
}

// FirebaseVerifier verifies Firebase Authentication ID tokens.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier initializes the Firebase app from cfg. Without a
// credentials file, Application Default Credentials are used.
func NewFirebaseVerifier(ctx context.Context, cfg *config.Config) (*FirebaseVerifier, error) {
	if cfg.FirebaseProjectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID is not set")
	}
	var opts []option.ClientOption
	if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}
	return IdentityFromToken(token)
}

// MockVerifier accepts tokens of the form "mock:<email>[:<name>]". It exists
// for local end-to-end runs with MOCK_SERVICES=true and must never be wired
// in production.
type MockVerifier struct{}

func (MockVerifier) Verify(_ context.Context, idToken string) (*Identity, error) {
	parts := strings.SplitN(idToken, ":", 3)
	if len(parts) < 2 || parts[0] != "mock" {
		return nil, errors.New("malformed mock token")
	}
	id := &Identity{UID: "mock-" + parts[1], Email: strings.TrimSpace(parts[1])}
	if len(parts) == 3 {
		id.Name = parts[2]
	}
	if id.Email == "" {
		return nil, ErrNoEmail
	}
	return id, nil
}

// NewVerifier picks the verifier for cfg.
func NewVerifier(ctx context.Context, cfg *config.Config) (TokenVerifier, error) {
	if cfg.MockServices && cfg.IsDevelopment() {
		return MockVerifier{}, nil
	}
	return NewFirebaseVerifier(ctx, cfg)
}
