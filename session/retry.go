package session

import (
	"math"
	"time"
)

// RetryPolicy controls how background refreshes back off after transient network failures.
// The n-th retry waits Base^n * Scale. After MaxRetries retries have failed the session is
// cleared.
type RetryPolicy struct {
	Base       float64
	Scale      time.Duration
	MaxRetries int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:       2,
		Scale:      100 * time.Millisecond,
		MaxRetries: 10,
	}
}

// Delay returns the wait before retry n (1 based).
func (p RetryPolicy) Delay(n int) time.Duration {
	return time.Duration(math.Pow(p.Base, float64(n)) * float64(p.Scale))
}
