package cache

// ScopedKeyer prefixes every key so multiple projects can share one cache
// backend without colliding, such as several checkouts pointed at the same
// Redis instance.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps a keyer with a namespace prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) GraphKey(root, manifestHash string) string {
	return k.prefix + k.inner.GraphKey(root, manifestHash)
}

func (k *ScopedKeyer) ResolutionKey(requirementsHash string) string {
	return k.prefix + k.inner.ResolutionKey(requirementsHash)
}
