package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"sigepa.cl/internal/obs"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func main() {
	log := obs.Logger()
	defer func() { _ = obs.SyncLogger() }()

	base := strings.TrimRight(envOr("SIGEPA_API_URL", "http://localhost:8080"), "/")
	email := os.Getenv("SIGEPA_SMOKE_EMAIL")
	password := os.Getenv("SIGEPA_SMOKE_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("SIGEPA_SMOKE_EMAIL and SIGEPA_SMOKE_PASSWORD are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := &http.Client{Timeout: 5 * time.Second}

	if status, _, err := call(ctx, client, http.MethodGet, base+"/healthz", "", nil); err != nil || status != http.StatusOK {
		log.Fatal("healthz", zap.Int("status", status), zap.Error(err))
	}

	// Protected routes must refuse anonymous callers.
	status, _, err := call(ctx, client, http.MethodGet, base+"/api/auth/me", "", nil)
	if err != nil {
		log.Fatal("anonymous me", zap.Error(err))
	}
	if status != http.StatusUnauthorized {
		log.Fatal("anonymous request was not rejected", zap.Int("status", status))
	}

	status, env, err := call(ctx, client, http.MethodPost, base+"/api/auth/login", "",
		map[string]string{"email": email, "password": password})
	if err != nil || status != http.StatusOK {
		log.Fatal("login", zap.Int("status", status), zap.Error(err))
	}
	var session struct {
		Token string `json:"token"`
		User  struct {
			ID          int64  `json:"id"`
			Role        string `json:"role"`
			CommunityID int64  `json:"communityId"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &session); err != nil || session.Token == "" {
		log.Fatal("decode login", zap.Error(err))
	}

	status, env, err = call(ctx, client, http.MethodGet, base+"/api/auth/me", session.Token, nil)
	if err != nil || status != http.StatusOK || !env.Success {
		log.Fatal("me", zap.Int("status", status), zap.Error(err))
	}

	status, _, err = call(ctx, client, http.MethodGet, base+"/api/parcels/mine", session.Token, nil)
	if err != nil || status != http.StatusOK {
		log.Fatal("own parcels", zap.Int("status", status), zap.Error(err))
	}

	fmt.Printf("smoke test passed: user=%d role=%s community=%d\n",
		session.User.ID, session.User.Role, session.User.CommunityID)
}

func call(ctx context.Context, client *http.Client, method, url, token string, body any) (int, envelope, error) {
	var env envelope
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return 0, env, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &payload)
	if err != nil {
		return 0, env, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, env, err
	}
	defer resp.Body.Close()
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(resp.Body).Decode(&env)
	}
	return resp.StatusCode, env, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
