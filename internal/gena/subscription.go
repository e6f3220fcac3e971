package gena

import "time"

// Subscription is one granted event lease. LeaseSeconds of 0 means the device
// granted an infinite lease.
type Subscription struct {
	SID          string    `json:"sid"`
	EventSubURL  string    `json:"event_sub_url"`
	LeaseSeconds uint32    `json:"lease_seconds"`
	CreatedAt    time.Time `json:"created_at"`
}

// Infinite reports whether the lease never expires
func (s Subscription) Infinite() bool {
	return s.LeaseSeconds == 0
}

// Lease returns the lease length, 0 when infinite
func (s Subscription) Lease() time.Duration {
	return time.Duration(s.LeaseSeconds) * time.Second
}

// ExpiresAt returns when the device will drop the subscription unless it is
// renewed. The zero time is returned for infinite leases.
func (s Subscription) ExpiresAt() time.Time {
	if s.Infinite() {
		return time.Time{}
	}
	return s.CreatedAt.Add(s.Lease())
}

// RenewBy returns the time a renewal should be sent, margin before expiry.
// When margin is not shorter than the lease, half the lease is used instead.
// The zero time is returned for infinite leases.
func (s Subscription) RenewBy(margin time.Duration) time.Time {
	if s.Infinite() {
		return time.Time{}
	}
	lease := s.Lease()
	if margin <= 0 || margin >= lease {
		margin = lease / 2
	}
	return s.CreatedAt.Add(lease - margin)
}
