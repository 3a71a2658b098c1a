package github

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	oauth2github "golang.org/x/oauth2/github"
)

// DeviceFlow runs the OAuth device authorization flow for a GitHub OAuth app.
// The flow needs only the app's public client ID.
type DeviceFlow struct {
	config *oauth2.Config
}

// DeviceCode is what the user needs to authorize the device.
type DeviceCode struct {
	UserCode        string
	VerificationURI string

	auth *oauth2.DeviceAuthResponse
}

// NewDeviceFlow creates a device flow for clientID. A zero endpoint selects
// github.com.
func NewDeviceFlow(clientID string, endpoint oauth2.Endpoint) *DeviceFlow {
	if endpoint.DeviceAuthURL == "" {
		endpoint = oauth2github.Endpoint
	}
	return &DeviceFlow{config: &oauth2.Config{
		ClientID: clientID,
		Endpoint: endpoint,
		Scopes:   []string{"read:user"},
	}}
}

// Start requests a device and user code.
func (f *DeviceFlow) Start(ctx context.Context) (*DeviceCode, error) {
	if f.config.ClientID == "" {
		return nil, fmt.Errorf("github: device flow needs an OAuth client id")
	}
	auth, err := f.config.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("github: request device code: %w", err)
	}
	return &DeviceCode{
		UserCode:        auth.UserCode,
		VerificationURI: auth.VerificationURI,
		auth:            auth,
	}, nil
}

// Wait polls until the user authorizes the device, the code expires, or ctx
// is done. It returns the access token.
func (f *DeviceFlow) Wait(ctx context.Context, code *DeviceCode) (string, error) {
	tok, err := f.config.DeviceAccessToken(ctx, code.auth)
	if err != nil {
		return "", fmt.Errorf("github: authorization failed: %w", err)
	}
	return tok.AccessToken, nil
}
