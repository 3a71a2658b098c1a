package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestDeviceFlow(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/device/code":
			if err := r.ParseForm(); err != nil {
				t.Fatal(err)
			}
			if r.Form.Get("client_id") != "client-123" {
				t.Errorf("client_id = %q", r.Form.Get("client_id"))
			}
			w.Write([]byte(`{"device_code":"dev","user_code":"ABCD-1234","verification_uri":"https://github.com/login/device","expires_in":900,"interval":1}`))
		case "/token":
			polls++
			if polls == 1 {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"authorization_pending"}`))
				return
			}
			w.Write([]byte(`{"access_token":"gho_token","token_type":"bearer"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	flow := NewDeviceFlow("client-123", oauth2.Endpoint{
		DeviceAuthURL: server.URL + "/device/code",
		TokenURL:      server.URL + "/token",
		AuthStyle:     oauth2.AuthStyleInParams,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	code, err := flow.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if code.UserCode != "ABCD-1234" {
		t.Errorf("UserCode = %q", code.UserCode)
	}

	token, err := flow.Wait(ctx, code)
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if token != "gho_token" {
		t.Errorf("token = %q", token)
	}
}

func TestDeviceFlowRequiresClientID(t *testing.T) {
	if _, err := NewDeviceFlow("", oauth2.Endpoint{}).Start(context.Background()); err == nil {
		t.Error("expected error without client id")
	}
}
