package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

const vaultKey = "token"

// VaultStore хранит секрет в KV v2 HashiCorp Vault
type VaultStore struct {
	kv  *vault.KVv2
	rel string
}

// NewVaultStore создаёт VaultStore по пути вида "<mount>/<path>".
// Адрес и токен Vault берутся из VAULT_ADDR и VAULT_TOKEN.
func NewVaultStore(secretPath string) (*VaultStore, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}
	cli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	return NewVaultStoreWithClient(cli, secretPath)
}

// NewVaultStoreWithClient создаёт VaultStore поверх готового клиента
func NewVaultStoreWithClient(cli *vault.Client, secretPath string) (*VaultStore, error) {
	mount, rel := splitMount(secretPath)
	if mount == "" || rel == "" {
		return nil, fmt.Errorf("vault path %q must look like <mount>/<path>", secretPath)
	}
	return &VaultStore{kv: cli.KVv2(mount), rel: rel}, nil
}

// Has сообщает, сохранён ли секрет
func (v *VaultStore) Has(ctx context.Context) bool {
	_, err := v.Retrieve(ctx)
	return err == nil
}

// Store сохраняет секрет новой версией
func (v *VaultStore) Store(ctx context.Context, value string) error {
	if _, err := v.kv.Put(ctx, v.rel, map[string]interface{}{vaultKey: value}); err != nil {
		return fmt.Errorf("vault put %s: %w", v.rel, err)
	}
	return nil
}

// Retrieve возвращает последнюю версию секрета
func (v *VaultStore) Retrieve(ctx context.Context) (string, error) {
	sec, err := v.kv.Get(ctx, v.rel)
	if errors.Is(err, vault.ErrSecretNotFound) {
		return "", ErrNoSecret
	}
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", v.rel, err)
	}
	raw, ok := sec.Data[vaultKey].(string)
	if !ok || raw == "" {
		return "", ErrNoSecret
	}
	return raw, nil
}

// Delete удаляет все версии секрета
func (v *VaultStore) Delete(ctx context.Context) error {
	if err := v.kv.DeleteMetadata(ctx, v.rel); err != nil {
		return fmt.Errorf("vault delete %s: %w", v.rel, err)
	}
	return nil
}

func splitMount(p string) (mount, rel string) {
	parts := strings.SplitN(strings.Trim(p, "/"), "/", 2)
	mount = parts[0]
	if len(parts) == 2 {
		rel = parts[1]
	}
	return
}
