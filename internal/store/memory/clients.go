package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// ClientStore implementa repository.ClientRepository sobre un registro
// cargado en memoria (típicamente desde un YAML).
type ClientStore struct {
	mu      sync.RWMutex
	clients map[string]repository.Client
	configs map[string]repository.ClientConfig
}

// NewClientStore crea un registro vacío.
func NewClientStore() *ClientStore {
	return &ClientStore{
		clients: make(map[string]repository.Client),
		configs: make(map[string]repository.ClientConfig),
	}
}

// PutClient registra o reemplaza un cliente.
func (s *ClientStore) PutClient(c repository.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

// PutConfig registra o reemplaza la configuración de un base client id.
func (s *ClientStore) PutConfig(c repository.ClientConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[c.BaseClientID] = c
}

func (s *ClientStore) GetClient(ctx context.Context, clientID string) (*repository.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s *ClientStore) GetConfig(ctx context.Context, baseClientID string) (*repository.ClientConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[baseClientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

// ---- YAML registry ----

type clientsFile struct {
	Clients []struct {
		ID                    string   `yaml:"id"`
		SecretHash            string   `yaml:"secret_hash"`
		GrantTypes            []string `yaml:"grant_types"`
		Authorities           []string `yaml:"authorities"`
		Scopes                []string `yaml:"scopes"`
		AccessTTL             string   `yaml:"access_ttl"`
		JwtFields             string   `yaml:"jwt_fields"`
		DatabaseUsernameField string   `yaml:"database_username_field"`
		Mfa                   string   `yaml:"mfa"`
		MfaRememberMe         bool     `yaml:"mfa_remember_me"`
	} `yaml:"clients"`
	Configs []struct {
		BaseClientID  string   `yaml:"base_client_id"`
		IPs           []string `yaml:"ips"`
		ClientEndDate string   `yaml:"client_end_date"` // YYYY-MM-DD
	} `yaml:"configs"`
}

// LoadClientsFile carga clientes y configuraciones desde un YAML.
func LoadClientsFile(path string) (*ClientStore, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return ParseClients(b)
}

// ParseClients parsea el formato YAML del registro de clientes.
func ParseClients(b []byte) (*ClientStore, error) {
	var f clientsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("clients: %w", err)
	}
	s := NewClientStore()
	for _, c := range f.Clients {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("clients: entry without id")
		}
		var ttl time.Duration
		if c.AccessTTL != "" {
			var err error
			if ttl, err = time.ParseDuration(c.AccessTTL); err != nil {
				return nil, fmt.Errorf("clients: %s access_ttl: %w", c.ID, err)
			}
		}
		mfa := types.ClientMfa(strings.ToLower(c.Mfa))
		if mfa == "" {
			mfa = types.ClientMfaNone
		}
		s.PutClient(repository.Client{
			ID:                    c.ID,
			SecretHash:            c.SecretHash,
			GrantTypes:            c.GrantTypes,
			Authorities:           c.Authorities,
			Scopes:                c.Scopes,
			AccessTTL:             ttl,
			JwtFields:             c.JwtFields,
			DatabaseUsernameField: c.DatabaseUsernameField,
			Mfa:                   mfa,
			MfaRememberMe:         c.MfaRememberMe,
		})
	}
	for _, c := range f.Configs {
		cfg := repository.ClientConfig{BaseClientID: c.BaseClientID, IPs: c.IPs}
		if c.ClientEndDate != "" {
			d, err := time.Parse("2006-01-02", c.ClientEndDate)
			if err != nil {
				return nil, fmt.Errorf("clients: %s client_end_date: %w", c.BaseClientID, err)
			}
			cfg.ClientEndDate = &d
		}
		s.PutConfig(cfg)
	}
	return s, nil
}
