package models

// SubscriptionStatus is the channel registry's view of a room subscription.
type SubscriptionStatus string

const (
	SubscriptionConnecting SubscriptionStatus = "connecting"
	SubscriptionSubscribed SubscriptionStatus = "subscribed"
	SubscriptionError      SubscriptionStatus = "error"
	SubscriptionClosed     SubscriptionStatus = "closed"
)

// SyncState is the reconnection supervisor's per-room state machine.
type SyncState string

const (
	SyncLive      SyncState = "live"
	SyncDegraded  SyncState = "degraded"
	SyncResyncing SyncState = "resyncing"
	SyncClosed    SyncState = "closed"
)
