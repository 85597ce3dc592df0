// Package events defines the typed lifecycle and diagnostic events produced by
// the Discord client and the bus that delivers them to handlers.
package events

import (
	"fmt"
	"time"
)

// Kind identifies an event type.
type Kind int

const (
	KindReady Kind = iota
	KindGuildUnavailable
	KindGuildUpdate
	KindShardDisconnect
	KindShardReconnecting
	KindShardResume
	KindShardError
	KindInvalidRequestWarning
	KindRateLimit
	KindDebug
	KindWarn
	KindError
)

var kindNames = [...]string{
	KindReady:                 "ready",
	KindGuildUnavailable:      "guild_unavailable",
	KindGuildUpdate:           "guild_update",
	KindShardDisconnect:       "shard_disconnect",
	KindShardReconnecting:     "shard_reconnecting",
	KindShardResume:           "shard_resume",
	KindShardError:            "shard_error",
	KindInvalidRequestWarning: "invalid_request_warning",
	KindRateLimit:             "rate_limit",
	KindDebug:                 "debug",
	KindWarn:                  "warn",
	KindError:                 "error",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is implemented by every payload type below.
type Event interface {
	Kind() Kind
}

// Guild is the part of a guild the bot reports on.
type Guild struct {
	ID        string
	Name      string
	Available bool
}

// Ready is emitted when a gateway session is established.
type Ready struct {
	Guilds []Guild
}

// Counts returns the total number of guilds and how many are available.
func (r Ready) Counts() (total, available int) {
	for _, g := range r.Guilds {
		if g.Available {
			available++
		}
	}
	return len(r.Guilds), available
}

type GuildUnavailable struct {
	Guild Guild
}

// GuildUpdate carries the tracked state before the update and the observed state after it.
type GuildUpdate struct {
	Old Guild
	New Guild
}

type ShardDisconnect struct {
	ShardID int
	// Code is the websocket close code, 0 when unknown.
	Code int
}

type ShardReconnecting struct {
	ShardID int
}

type ShardResume struct {
	ShardID        int
	ReplayedEvents int
}

type ShardError struct {
	ShardID int
	Err     error
}

// InvalidRequestWarning reports the invalid REST requests made in the current window.
type InvalidRequestWarning struct {
	Count         int
	RemainingTime time.Duration
}

// RateLimit describes a REST request that hit a 429.
type RateLimit struct {
	Timeout time.Duration
	Limit   int
	Method  string
	Path    string
	Route   string
	Global  bool
}

// Debug, Warn and Error carry diagnostics emitted by the client library.
type Debug struct {
	Message string
}

type Warn struct {
	Message string
}

type Error struct {
	Err error
}

func (Ready) Kind() Kind                 { return KindReady }
func (GuildUnavailable) Kind() Kind      { return KindGuildUnavailable }
func (GuildUpdate) Kind() Kind           { return KindGuildUpdate }
func (ShardDisconnect) Kind() Kind       { return KindShardDisconnect }
func (ShardReconnecting) Kind() Kind     { return KindShardReconnecting }
func (ShardResume) Kind() Kind           { return KindShardResume }
func (ShardError) Kind() Kind            { return KindShardError }
func (InvalidRequestWarning) Kind() Kind { return KindInvalidRequestWarning }
func (RateLimit) Kind() Kind             { return KindRateLimit }
func (Debug) Kind() Kind                 { return KindDebug }
func (Warn) Kind() Kind                  { return KindWarn }
func (Error) Kind() Kind                 { return KindError }
