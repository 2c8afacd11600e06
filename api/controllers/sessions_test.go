package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/auth"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/config"
)

func sessionConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "fairway-pos",
			ExpirationMinutes: 60,
			ProvisionKey:      "provision-key",
		},
	}
}

func TestOpenRegisterSessionSuccess(t *testing.T) {
	cfg := sessionConfig()
	handler := OpenRegisterSession(cfg, testLogger())

	body := []byte(`{"provision_key":"provision-key","register_id":"reg-7","employee_id":"emp-1","employee_name":"Jordan"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	var data openSessionResponse
	decodeData(t, resp, &data)
	if data.Token == "" {
		t.Fatal("expected a token")
	}

	claims, err := auth.ParseRegisterToken(cfg.JWT, data.Token)
	if err != nil {
		t.Fatalf("minted token does not parse: %v", err)
	}
	if claims.RegisterID != "reg-7" || claims.EmployeeID != "emp-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestOpenRegisterSessionRejectsWrongKey(t *testing.T) {
	handler := OpenRegisterSession(sessionConfig(), testLogger())

	body := []byte(`{"provision_key":"wrong","register_id":"reg-7","employee_id":"emp-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestOpenRegisterSessionRejectsWhenProvisioningDisabled(t *testing.T) {
	cfg := sessionConfig()
	cfg.JWT.ProvisionKey = ""
	handler := OpenRegisterSession(cfg, testLogger())

	body := []byte(`{"provision_key":"","register_id":"reg-7","employee_id":"emp-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR got %s", envelope.Error.Code)
	}
}
