// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package agentauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type tokenClaims struct {
	AgentID string `json:"agent_id"`
	jwt.RegisteredClaims
}

// IssueToken creates a short-lived HS256 session token for a registered
// agent.
func (s *Service) IssueToken(agentID string) (string, error) {
	s.mu.RLock()
	_, ok := s.agents[agentID]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, agentID)
	}

	now := time.Now()
	claims := tokenClaims{
		AgentID: agentID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// AuthenticateToken verifies a session token and returns the agent id. An
// expired or tampered token, or one for a since-removed agent, fails with
// ErrUnauthenticated.
func (s *Service) AuthenticateToken(tokenString string) (string, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid || claims.AgentID == "" {
		return "", ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[claims.AgentID]
	if !ok {
		return "", ErrUnauthenticated
	}
	a.LastUsed = time.Now().UTC()
	return claims.AgentID, nil
}
