package cache

// ScopedKeyer wraps a Keyer with a prefix. Server replicas sharing one redis
// or mongo backend use it to keep deployments with different feature sets
// apart:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "gadgethost:prod:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// FeatureKey generates a prefixed feature content key.
func (k *ScopedKeyer) FeatureKey(feature, context, fingerprint string, compressed bool) string {
	return k.prefix + k.inner.FeatureKey(feature, context, fingerprint, compressed)
}

// RegistryKey generates a prefixed registry snapshot key.
func (k *ScopedKeyer) RegistryKey(roots []string, resourceBase string) string {
	return k.prefix + k.inner.RegistryKey(roots, resourceBase)
}

// HTTPKey generates a prefixed HTTP body key.
func (k *ScopedKeyer) HTTPKey(url string) string {
	return k.prefix + k.inner.HTTPKey(url)
}
