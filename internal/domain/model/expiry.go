package model

import "time"

type expiryKind uint8

const (
	expiryUnset expiryKind = iota // not yet computed (pending payment)
	expiryNever                   // lifetime plans
	expiryAt                      // expires at a known instant
)

// Expiry distinguishes "does not expire" from "not yet computed". A plain
// nullable timestamp conflates the two, which is how lifetime subscriptions
// end up swept by mistake.
type Expiry struct {
	kind expiryKind
	at   time.Time
}

// ExpiryUnset is the zero value: no expiration has been computed yet.
func ExpiryUnset() Expiry { return Expiry{} }

func ExpiryNever() Expiry { return Expiry{kind: expiryNever} }

func ExpiryAt(t time.Time) Expiry { return Expiry{kind: expiryAt, at: t} }

func (e Expiry) Unset() bool { return e.kind == expiryUnset }
func (e Expiry) Never() bool { return e.kind == expiryNever }

// Time returns the expiration instant and whether one is set.
func (e Expiry) Time() (time.Time, bool) {
	if e.kind != expiryAt {
		return time.Time{}, false
	}
	return e.at, true
}

// DueBy reports whether the expiry has passed at the given instant.
// Unset and never-expiring values are never due.
func (e Expiry) DueBy(now time.Time) bool {
	if e.kind != expiryAt {
		return false
	}
	return !e.at.After(now)
}
