package rates

import "time"

const (
	// An account is skipped once it has failed this many times in a row
	// while still holding a recent success.
	openFailureThreshold = 3

	// How long after the last success a failing account stays skipped.
	// Once the cooldown elapses the account is eligible again, a
	// time-based half-open retry with no explicit probe.
	openCooldown = time.Hour
)

// Account is one provider credential together with its access history.
// Accounts are created once per configured credential and live for the
// whole process; counters are mutated on every access attempt.
type Account struct {
	Credential string

	SuccessfulAccesses  int
	FailedAccesses      int
	SubsequentSuccesses int
	SubsequentFailures  int

	LastAccess           time.Time
	LastSuccessfulAccess time.Time
	LastFailedAccess     time.Time
}

func NewAccount(credential string) *Account {
	return &Account{Credential: credential}
}

func (a *Account) RegisterSuccess(now time.Time) {
	a.LastAccess = now
	a.SubsequentFailures = 0
	a.SubsequentSuccesses++
	a.SuccessfulAccesses++
	a.LastSuccessfulAccess = now
}

func (a *Account) RegisterFailure(now time.Time) {
	a.LastAccess = now
	a.SubsequentSuccesses = 0
	a.SubsequentFailures++
	a.FailedAccesses++
	a.LastFailedAccess = now
}

// Available is the circuit breaker: the account is skipped only while
// it has accumulated openFailureThreshold subsequent failures on top of
// a success more recent than openCooldown. An account that has never
// succeeded is always eligible.
func (a *Account) Available(now time.Time) bool {
	if a.SubsequentFailures < openFailureThreshold {
		return true
	}
	if a.LastSuccessfulAccess.IsZero() {
		return true
	}
	return now.Sub(a.LastSuccessfulAccess) >= openCooldown
}
