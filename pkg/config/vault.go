package config

import (
	"os"
	"time"

	"github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// VaultModule provides an optional Vault client. When VAULT_ADDR is unset the
// provider yields nil and LoadConfig skips the secret overlay.
var VaultModule = fx.Module("vault", fx.Provide(ProvideVault))

func ProvideVault() (*vault.Client, error) {
	addr, ok := os.LookupEnv("VAULT_ADDR")
	if !ok || addr == "" {
		return nil, nil
	}

	client, err := vault.New(
		vault.WithAddress(addr),
		vault.WithRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, err
	}

	if token, ok := os.LookupEnv("VAULT_TOKEN"); ok {
		if err := client.SetToken(token); err != nil {
			return nil, err
		}
	}

	zap.L().Info("vault client configured", zap.String("addr", addr))
	return client, nil
}
