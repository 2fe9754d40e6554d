// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package broker

import "github.com/ManuGH/tvbroker/internal/transport"

// clientState tracks one connected client process. It holds back-references
// (tokens) only; session records are owned exclusively by the session table.
// The record exists exactly while the client owns at least one session or
// subscription.
type clientState struct {
	client transport.Client
	token  string
	userID int

	sessionTokens []string
	subscriptions []string // provider ids with a live callback interest

	// cancelDeath unregisters the liveness watcher. Set once on creation.
	cancelDeath func()
}

func (c *clientState) isEmpty() bool {
	return len(c.sessionTokens) == 0 && len(c.subscriptions) == 0
}

func (c *clientState) addSessionToken(token string) {
	c.sessionTokens = append(c.sessionTokens, token)
}

func (c *clientState) removeSessionToken(token string) {
	c.sessionTokens = removeString(c.sessionTokens, token)
}

func (c *clientState) addSubscription(providerID string) {
	for _, id := range c.subscriptions {
		if id == providerID {
			return
		}
	}
	c.subscriptions = append(c.subscriptions, providerID)
}

func (c *clientState) removeSubscription(providerID string) {
	c.subscriptions = removeString(c.subscriptions, providerID)
}

func (c *clientState) hasSubscription(providerID string) bool {
	for _, id := range c.subscriptions {
		if id == providerID {
			return true
		}
	}
	return false
}
