package cache

// ScopedKeyer wraps a Keyer with a prefix so several deployments can share
// one Redis instance without key collisions.
//
// Example usage:
//
//	k := NewScopedKeyer(NewDefaultKeyer(), "postcard:prod:")
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

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// ImageKey generates a prefixed key for a fetched image.
func (k *ScopedKeyer) ImageKey(url string) string {
	return k.prefix + k.inner.ImageKey(url)
}

// CaptionKey generates a prefixed key for a caption reply.
func (k *ScopedKeyer) CaptionKey(opts CaptionKeyOpts) string {
	return k.prefix + k.inner.CaptionKey(opts)
}

// ArtifactKey generates a prefixed key for a composed postcard.
func (k *ScopedKeyer) ArtifactKey(imageHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(imageHash, opts)
}
