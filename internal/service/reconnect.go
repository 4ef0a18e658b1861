package service

import "time"

// ReconnectPolicy decides how the manager reacts to connection loss.
// The zero-ish default (no cap, no backoff, restart after logout)
// reproduces the original gateway's behavior; hardening is a config
// change, not a rewrite.
type ReconnectPolicy struct {
	// MaxAttempts caps consecutive failed reconnects per session.
	// 0 means unbounded.
	MaxAttempts int

	// Backoff is the base delay between attempts; it doubles per attempt
	// up to MaxBackoff. 0 means reconnect immediately.
	Backoff    time.Duration
	MaxBackoff time.Duration

	// RestartAfterLogout controls whether a terminal logout re-provisions
	// the same session ID with a fresh identity (original behavior) or
	// leaves it dormant until an operator starts it again.
	RestartAfterLogout bool
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts:        0,
		Backoff:            0,
		MaxBackoff:         2 * time.Minute,
		RestartAfterLogout: true,
	}
}

// Exhausted reports whether the attempt counter has passed the cap.
func (p ReconnectPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt > p.MaxAttempts
}

// Delay returns how long to wait before the given attempt (1-based).
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}

	d := p.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
