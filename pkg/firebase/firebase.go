package firebase

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// App holds the initialized Firebase app with its auth and messaging clients
type App struct {
	FirebaseApp     *firebase.App
	AuthClient      *auth.Client
	MessagingClient *messaging.Client
}

// InitFirebase initializes the Firebase application. Base64 encoded service account
// JSON takes precedence over the credentials file.
func InitFirebase(ctx context.Context, credentialsPath, encodedCreds string) (*App, error) {
	var opt option.ClientOption

	switch {
	case encodedCreds != "":
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("decoding FCM_SERVICE_ACCOUNT_JSON: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
	case credentialsPath != "":
		if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials file not found at %s", credentialsPath)
		}
		opt = option.WithCredentialsFile(credentialsPath)
	default:
		return nil, fmt.Errorf("firebase credentials not provided")
	}

	firebaseApp, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	messagingClient, err := firebaseApp.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase messaging client: %w", err)
	}

	logger.Info("firebase initialized", zap.Bool("fromEnv", encodedCreds != ""))
	return &App{FirebaseApp: firebaseApp, AuthClient: authClient, MessagingClient: messagingClient}, nil
}
