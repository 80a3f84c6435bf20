// Package secrets carrega o segredo do gateway a partir do Vault.
package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/vault/api"
)

// GatewaySecretKey é o campo que guarda o segredo da chave do gateway.
const GatewaySecretKey = "key_secret"

type VaultConfig struct {
	Address string
	Token   string
	Path    string
}

type VaultLoader struct {
	client *api.Client
	path   string
}

func NewVaultLoader(cfg VaultConfig) (*VaultLoader, error) {
	if cfg.Address == "" || cfg.Path == "" {
		return nil, fmt.Errorf("vault address and secret path are required")
	}

	config := api.DefaultConfig()
	config.Address = cfg.Address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	return &VaultLoader{client: client, path: strings.Trim(cfg.Path, "/")}, nil
}

// GatewaySecret lê key_secret do caminho configurado. Aceita os formatos KV v1 e v2.
func (l *VaultLoader) GatewaySecret(ctx context.Context) ([]byte, error) {
	secret, err := l.client.Logical().ReadWithContext(ctx, l.path)
	if err != nil {
		return nil, fmt.Errorf("read vault secret %s: %w", l.path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("vault secret %s not found", l.path)
	}

	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}
	value, ok := data[GatewaySecretKey].(string)
	if !ok || value == "" {
		return nil, fmt.Errorf("vault secret %s has no %s", l.path, GatewaySecretKey)
	}
	return []byte(value), nil
}
