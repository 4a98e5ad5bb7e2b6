package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func signTestJWT(t *testing.T, secret string, claims TokenClaims) string {
	t.Helper()
	header, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	data := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	return data + "." + hmacSign(secret, data)
}

func TestAuthJWT(t *testing.T) {
	const secret = "test-secret"
	valid := signTestJWT(t, secret, TokenClaims{Sub: "user-7", Locale: "id-ID", Exp: time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer a.b", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signTestJWT(t, "other", TokenClaims{Sub: "user-7"}), http.StatusUnauthorized},
		{"expired", "Bearer " + signTestJWT(t, secret, TokenClaims{Sub: "user-7", Exp: time.Now().Add(-time.Minute).Unix()}), http.StatusUnauthorized},
		{"no subject", "Bearer " + signTestJWT(t, secret, TokenClaims{}), http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotUser, gotLocale string
			h := AuthJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = UserIDFromContext(r.Context())
				gotLocale = LocaleFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))
			req := httptest.NewRequest(http.MethodGet, "/v1/campaigns", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus != http.StatusNoContent {
				var body map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["code"] != "unauthorized" {
					t.Fatalf("unexpected body %q", rec.Body.String())
				}
				return
			}
			if gotUser != "user-7" || gotLocale != "id" {
				t.Fatalf("context = (%q, %q), want (user-7, id)", gotUser, gotLocale)
			}
		})
	}
}
