package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingDelay equalizes the observable duration of credential failures so
// "unknown user" and "wrong password" cannot be told apart by timing.
type TimingDelay struct {
	base   time.Duration
	jitter time.Duration
}

// NewTimingDelay creates a delay of base plus up to jitter of random slack.
func NewTimingDelay(base, jitter time.Duration) *TimingDelay {
	return &TimingDelay{base: base, jitter: jitter}
}

// Wait blocks on failed attempts; successful attempts return immediately.
func (d *TimingDelay) Wait(success bool) {
	if success || d == nil || (d.base == 0 && d.jitter == 0) {
		return
	}

	delay := d.base
	if d.jitter > 0 {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err == nil {
			delay += time.Duration(binary.BigEndian.Uint64(buf[:]) % uint64(d.jitter))
		}
	}
	time.Sleep(delay)
}
