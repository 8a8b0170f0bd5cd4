// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault stores third-party credentials sealed at rest and injects
// them into outbound API calls so secret material never appears in workflow
// definitions, results, or logs.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	derivationSalt       = "a2e-vault-salt"
	derivationIterations = 100_000
	derivedKeyLen        = 32
)

// Credential kinds.
const (
	KindAPIKey      = "api-key"
	KindBearerToken = "bearer-token"
	KindBasicAuth   = "basic-auth"
	KindPassword    = "password"
	KindOAuth2      = "oauth2"
	KindCustom      = "custom"
)

// NormalizeKind folds underscore spellings (api_key, bearer_token) into the
// hyphenated kind names, so stored vaults and callers using either form
// agree.
func NormalizeKind(kind string) string {
	return strings.ReplaceAll(kind, "_", "-")
}

var (
	// ErrNotFound is returned when no credential has the requested id.
	ErrNotFound = errors.New("credential not found")
	// ErrSealed is returned when a blob cannot be opened with the
	// configured master key.
	ErrSealed = errors.New("credential cannot be unsealed")
)

// Credential is a stored secret with its discoverable envelope. Data holds
// the secret fields (key, token, username/password, headers) and is the only
// part that is sealed; everything else may be listed and indexed.
type Credential struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
	Data        map[string]string `json:"data"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Info is the discoverable projection of a credential: no secret fields.
type Info struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type storedCredential struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
	Blob        string            `json:"blob"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type vaultFile struct {
	Credentials map[string]*storedCredential `json:"credentials"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

// Vault seals credentials with AES-256-GCM under a key derived from the
// master key via PBKDF2-SHA256 and persists them to a JSON file.
type Vault struct {
	mu     sync.RWMutex
	path   string
	aead   cipher.AEAD
	creds  map[string]*storedCredential
	logger *slog.Logger
}

// New opens or creates the vault file at path. masterKey must be non-empty.
func New(path, masterKey string, logger *slog.Logger) (*Vault, error) {
	if masterKey == "" {
		return nil, fmt.Errorf("vault master key is required")
	}

	key := pbkdf2.Key([]byte(masterKey), []byte(derivationSalt), derivationIterations, derivedKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}

	v := &Vault{
		path:   path,
		aead:   aead,
		creds:  map[string]*storedCredential{},
		logger: logger.With("component", "vault"),
	}
	if err := v.load(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vault) load() error {
	raw, err := os.ReadFile(v.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading vault file: %w", err)
	}
	var f vaultFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parsing vault file: %w", err)
	}
	if f.Credentials != nil {
		v.creds = f.Credentials
	}
	v.logger.Info("vault loaded", "credentials", len(v.creds))
	return nil
}

// save must be called with the write lock held.
func (v *Vault) save() error {
	f := vaultFile{Credentials: v.creds, UpdatedAt: time.Now().UTC()}
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding vault file: %w", err)
	}
	if dir := filepath.Dir(v.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating vault directory: %w", err)
		}
	}
	if err := os.WriteFile(v.path, raw, 0o600); err != nil {
		return fmt.Errorf("writing vault file: %w", err)
	}
	return nil
}

func (v *Vault) seal(data map[string]string) (string, error) {
	plain, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := v.aead.Seal(nonce, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *Vault) unseal(blob string) (map[string]string, error) {
	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrSealed
	}
	ns := v.aead.NonceSize()
	if len(sealed) < ns {
		return nil, ErrSealed
	}
	plain, err := v.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, ErrSealed
	}
	var data map[string]string
	if err := json.Unmarshal(plain, &data); err != nil {
		return nil, ErrSealed
	}
	return data, nil
}

// Store seals and persists a credential, overwriting any existing one with
// the same id.
func (v *Vault) Store(cred Credential) error {
	if cred.ID == "" {
		return fmt.Errorf("credential id is required")
	}
	if cred.Kind == "" {
		cred.Kind = KindCustom
	}
	cred.Kind = NormalizeKind(cred.Kind)

	blob, err := v.seal(cred.Data)
	if err != nil {
		return fmt.Errorf("sealing credential %q: %w", cred.ID, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now().UTC()
	created := now
	if prev, ok := v.creds[cred.ID]; ok {
		created = prev.CreatedAt
	}
	v.creds[cred.ID] = &storedCredential{
		ID:          cred.ID,
		Kind:        cred.Kind,
		Description: cred.Description,
		Metadata:    cred.Metadata,
		Blob:        blob,
		CreatedAt:   created,
		UpdatedAt:   now,
	}
	if err := v.save(); err != nil {
		return err
	}
	v.logger.Info("credential stored", "credential_id", cred.ID, "kind", cred.Kind)
	return nil
}

// Resolve opens the credential's sealed data. Callers must not expose the
// returned map in any agent-visible output.
func (v *Vault) Resolve(id string) (map[string]string, error) {
	v.mu.RLock()
	sc, ok := v.creds[id]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v.unseal(sc.Blob)
}

// Get returns the discoverable projection of one credential.
func (v *Vault) Get(id string) (Info, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	sc, ok := v.creds[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return infoOf(sc), nil
}

// List returns discoverable projections of all credentials, id-ordered.
func (v *Vault) List() []Info {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Info, 0, len(v.creds))
	for _, sc := range v.creds {
		out = append(out, infoOf(sc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes a credential and persists the change.
func (v *Vault) Delete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.creds[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(v.creds, id)
	if err := v.save(); err != nil {
		return err
	}
	v.logger.Info("credential deleted", "credential_id", id)
	return nil
}

// Search scores credentials against the query over their discoverable
// envelope only: description x3, metadata values x2, id x1. kind filters
// when non-empty; topK caps results when positive.
func (v *Vault) Search(query, kind string, topK int) []Info {
	words := strings.Fields(strings.ToLower(query))

	v.mu.RLock()
	defer v.mu.RUnlock()

	type scored struct {
		info  Info
		score int
	}
	var hits []scored
	kind = NormalizeKind(kind)
	for _, sc := range v.creds {
		if kind != "" && NormalizeKind(sc.Kind) != kind {
			continue
		}
		score := 0
		desc := strings.ToLower(sc.Description)
		id := strings.ToLower(sc.ID)
		var meta strings.Builder
		for _, mv := range sc.Metadata {
			meta.WriteString(strings.ToLower(mv))
			meta.WriteByte(' ')
		}
		for _, w := range words {
			if strings.Contains(desc, w) {
				score += 3
			}
			if strings.Contains(meta.String(), w) {
				score += 2
			}
			if strings.Contains(id, w) {
				score++
			}
		}
		if score > 0 || len(words) == 0 {
			hits = append(hits, scored{info: infoOf(sc), score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].info.ID < hits[j].info.ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]Info, len(hits))
	for i, h := range hits {
		out[i] = h.info
	}
	return out
}

func infoOf(sc *storedCredential) Info {
	return Info{
		ID:          sc.ID,
		Kind:        sc.Kind,
		Description: sc.Description,
		Metadata:    sc.Metadata,
		CreatedAt:   sc.CreatedAt,
		UpdatedAt:   sc.UpdatedAt,
	}
}
