// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"encoding/base64"
	"fmt"
)

// CredentialRef extracts the credential id referenced by an API call
// config, accepting both a bare string and a {"id": ...} object under the
// "credentialRef" key.
func CredentialRef(config map[string]any) (string, bool) {
	ref, ok := config["credentialRef"]
	if !ok {
		return "", false
	}
	switch t := ref.(type) {
	case string:
		return t, t != ""
	case map[string]any:
		id, _ := t["id"].(string)
		return id, id != ""
	default:
		return "", false
	}
}

// Inject resolves the referenced credential and materializes it into the
// call's headers according to its kind. The returned header map includes
// any headers already present in the config; injected values win.
func (v *Vault) Inject(id string, headers map[string]string) (map[string]string, error) {
	data, err := v.Resolve(id)
	if err != nil {
		return nil, err
	}

	v.mu.RLock()
	sc, ok := v.creds[id]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	out := make(map[string]string, len(headers)+2)
	for k, val := range headers {
		out[k] = val
	}

	switch NormalizeKind(sc.Kind) {
	case KindAPIKey:
		header := sc.Metadata["header"]
		if header == "" {
			header = "X-API-Key"
		}
		key := data["key"]
		if key == "" {
			key = data["api_key"]
		}
		if key == "" {
			return nil, fmt.Errorf("credential %q has no key field", id)
		}
		if prefix := sc.Metadata["prefix"]; prefix != "" {
			key = prefix + " " + key
		}
		out[header] = key
	case KindBearerToken, KindOAuth2:
		token := data["token"]
		if token == "" {
			token = data["access_token"]
		}
		if token == "" {
			return nil, fmt.Errorf("credential %q has no token field", id)
		}
		out["Authorization"] = "Bearer " + token
	case KindBasicAuth:
		user, pass := data["username"], data["password"]
		if user == "" {
			return nil, fmt.Errorf("credential %q has no username field", id)
		}
		enc := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
		out["Authorization"] = "Basic " + enc
	case KindCustom:
		// Custom credentials contribute their fields as literal headers.
		for k, val := range data {
			out[k] = val
		}
	default:
		return nil, fmt.Errorf("credential %q has unsupported kind %q", id, sc.Kind)
	}
	return out, nil
}

// InjectConfig walks an operation config and replaces every credentialRef
// leaf below the root with the resolved secret, rendered for its kind:
// bearer tokens and OAuth2 tokens become "Bearer <secret>", every other
// kind yields the raw secret. The root map itself is left alone so a
// top-level credentialRef keeps its header-injection meaning. Returns the
// rewritten config and the ids of the credentials that were used.
func (v *Vault) InjectConfig(config map[string]any) (map[string]any, []string, error) {
	out := make(map[string]any, len(config))
	var used []string
	for k, val := range config {
		if k == "credentialRef" {
			out[k] = val
			continue
		}
		rewritten, ids, err := v.injectValue(val)
		if err != nil {
			return nil, nil, err
		}
		out[k] = rewritten
		used = append(used, ids...)
	}
	return out, used, nil
}

func (v *Vault) injectValue(val any) (any, []string, error) {
	switch t := val.(type) {
	case map[string]any:
		if id, ok := CredentialRef(t); ok {
			secret, err := v.formattedSecret(id)
			if err != nil {
				return nil, nil, err
			}
			return secret, []string{id}, nil
		}
		out := make(map[string]any, len(t))
		var used []string
		for k, e := range t {
			rewritten, ids, err := v.injectValue(e)
			if err != nil {
				return nil, nil, err
			}
			out[k] = rewritten
			used = append(used, ids...)
		}
		return out, used, nil
	case []any:
		out := make([]any, len(t))
		var used []string
		for i, e := range t {
			rewritten, ids, err := v.injectValue(e)
			if err != nil {
				return nil, nil, err
			}
			out[i] = rewritten
			used = append(used, ids...)
		}
		return out, used, nil
	default:
		return val, nil, nil
	}
}

// formattedSecret renders a credential as a single string for in-config
// substitution.
func (v *Vault) formattedSecret(id string) (string, error) {
	data, err := v.Resolve(id)
	if err != nil {
		return "", err
	}
	v.mu.RLock()
	sc, ok := v.creds[id]
	v.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	secret, err := secretValue(id, data)
	if err != nil {
		return "", err
	}
	switch NormalizeKind(sc.Kind) {
	case KindBearerToken, KindOAuth2:
		return "Bearer " + secret, nil
	default:
		return secret, nil
	}
}

// secretValue picks the single secret string out of a credential's data,
// trying the conventional field names before falling back to a sole entry.
func secretValue(id string, data map[string]string) (string, error) {
	for _, field := range []string{"value", "token", "access_token", "key", "api_key", "password", "secret"} {
		if data[field] != "" {
			return data[field], nil
		}
	}
	if len(data) == 1 {
		for _, val := range data {
			return val, nil
		}
	}
	return "", fmt.Errorf("credential %q has no single secret value", id)
}

// UsageHint describes how workflows reference a credential kind, served in
// the capability view so agents can self-configure API calls.
func UsageHint(kind string) string {
	switch kind {
	case KindAPIKey:
		return "Referenced via credentialRef; injected as the configured API key header"
	case KindBearerToken:
		return "Referenced via credentialRef; injected as 'Authorization: Bearer <token>'"
	case KindBasicAuth:
		return "Referenced via credentialRef; injected as an 'Authorization: Basic' header"
	case KindOAuth2:
		return "Referenced via credentialRef; the current access token is injected as a bearer header"
	default:
		return "Referenced via credentialRef; stored fields are injected as request headers"
	}
}
