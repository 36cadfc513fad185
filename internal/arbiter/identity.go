package arbiter

// Identity approximates "same physical client" from what the transport
// can observe: network address plus client signature (user agent).
type Identity struct {
	IPAddress string
	UserAgent string
}

// IdentityMatcher decides whether two identities belong to the same
// client. Alternate strategies (e.g. signed device tokens) can be
// substituted without touching the arbitration logic.
type IdentityMatcher interface {
	SameClient(a, b Identity) bool
}

// ExactMatcher requires both address and signature to match.
type ExactMatcher struct{}

func (ExactMatcher) SameClient(a, b Identity) bool {
	return a.IPAddress == b.IPAddress && a.UserAgent == b.UserAgent
}
