package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVault(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		if r.URL.Path != "/v1/secret/data/gateway" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errors":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestVaultLoader_ReadsKVv2(t *testing.T) {
	server := newVault(t, `{"data":{"data":{"key_secret":"s3cret"},"metadata":{"version":1}}}`)
	loader, err := NewVaultLoader(VaultConfig{Address: server.URL, Token: "root", Path: "/secret/data/gateway"})
	require.NoError(t, err)

	secret, err := loader.GatewaySecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), secret)
}

func TestVaultLoader_ReadsKVv1(t *testing.T) {
	server := newVault(t, `{"data":{"key_secret":"flat"}}`)
	loader, err := NewVaultLoader(VaultConfig{Address: server.URL, Token: "root", Path: "secret/data/gateway"})
	require.NoError(t, err)

	secret, err := loader.GatewaySecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("flat"), secret)
}

func TestVaultLoader_MissingSecretOrKey(t *testing.T) {
	server := newVault(t, `{"data":{"data":{"other":"x"}}}`)

	loader, err := NewVaultLoader(VaultConfig{Address: server.URL, Token: "root", Path: "secret/data/gateway"})
	require.NoError(t, err)
	_, err = loader.GatewaySecret(context.Background())
	assert.ErrorContains(t, err, GatewaySecretKey)

	missing, err := NewVaultLoader(VaultConfig{Address: server.URL, Token: "root", Path: "secret/data/nope"})
	require.NoError(t, err)
	_, err = missing.GatewaySecret(context.Background())
	assert.Error(t, err)

	_, err = NewVaultLoader(VaultConfig{})
	assert.Error(t, err)
}
