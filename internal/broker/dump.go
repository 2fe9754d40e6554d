// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package broker

import (
	"sort"
	"time"

	"github.com/ManuGH/tvbroker/internal/transport"
)

// ProviderRecord is the diagnostics view of one provider.
type ProviderRecord struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Kind        string                   `json:"kind"`
	Binding     BindingState             `json:"binding"`
	Connected   transport.ConnectedState `json:"connected"`
	Refcount    int                      `json:"refcount"`
	Sessions    []string                 `json:"sessions,omitempty"`
	Subscribers []string                 `json:"subscribers,omitempty"`
}

// SessionRecord is the diagnostics view of one session.
type SessionRecord struct {
	Token       string       `json:"token"`
	ProviderID  string       `json:"provider_id"`
	ClientToken string       `json:"client_token"`
	Seq         int32        `json:"seq"`
	UserID      int          `json:"user_id"`
	Phase       SessionPhase `json:"phase"`
	PendingOps  int          `json:"pending_ops"`
	LogEntry    string       `json:"log_entry,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ClientRecord is the diagnostics view of one client.
type ClientRecord struct {
	Token         string   `json:"token"`
	UserID        int      `json:"user_id"`
	Sessions      []string `json:"sessions,omitempty"`
	Subscriptions []string `json:"subscriptions,omitempty"`
}

// Snapshot is a point-in-time dump of the broker's registries.
type Snapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Uptime      string           `json:"uptime"`
	CurrentUser int              `json:"current_user"`
	Providers   []ProviderRecord `json:"providers"`
	Sessions    []SessionRecord  `json:"sessions"`
	Clients     []ClientRecord   `json:"clients"`
}

// Dump returns a consistent snapshot of all registries. Providers follow
// enumeration order; sessions and clients are sorted by token so repeated
// dumps diff cleanly.
func (b *Broker) Dump() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		GeneratedAt: time.Now(),
		Uptime:      time.Since(b.startedAt).Round(time.Second).String(),
		CurrentUser: b.currentUser,
		Providers:   make([]ProviderRecord, 0, len(b.providers)),
		Sessions:    make([]SessionRecord, 0, len(b.sessions)),
		Clients:     make([]ClientRecord, 0, len(b.clients)),
	}

	for _, id := range b.providerIDs {
		p, ok := b.providers[id]
		if !ok {
			continue
		}
		snap.Providers = append(snap.Providers, ProviderRecord{
			ID:          p.info.ID,
			Name:        p.info.Name,
			Kind:        p.info.Kind,
			Binding:     p.binding,
			Connected:   p.connected,
			Refcount:    p.refcount(),
			Sessions:    sortedCopy(p.sessionTokens),
			Subscribers: sortedCopy(p.clientTokens),
		})
	}
	for _, s := range b.sessions {
		snap.Sessions = append(snap.Sessions, SessionRecord{
			Token:       s.token,
			ProviderID:  s.providerID,
			ClientToken: s.client.Token(),
			Seq:         s.seq,
			UserID:      s.userID,
			Phase:       s.phase,
			PendingOps:  s.ops.outstanding(),
			LogEntry:    s.logEntry,
			CreatedAt:   s.createdAt,
		})
	}
	for _, c := range b.clients {
		snap.Clients = append(snap.Clients, ClientRecord{
			Token:         c.token,
			UserID:        c.userID,
			Sessions:      sortedCopy(c.sessionTokens),
			Subscriptions: sortedCopy(c.subscriptions),
		})
	}

	sort.Slice(snap.Sessions, func(i, j int) bool { return snap.Sessions[i].Token < snap.Sessions[j].Token })
	sort.Slice(snap.Clients, func(i, j int) bool { return snap.Clients[i].Token < snap.Clients[j].Token })
	return snap
}

// Providers returns the provider records only.
func (b *Broker) Providers() []ProviderRecord {
	return b.Dump().Providers
}

// Sessions returns the session records only.
func (b *Broker) Sessions() []SessionRecord {
	return b.Dump().Sessions
}

// Clients returns the client records only.
func (b *Broker) Clients() []ClientRecord {
	return b.Dump().Clients
}

// CurrentUser reports the active user.
func (b *Broker) CurrentUser() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentUser
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
