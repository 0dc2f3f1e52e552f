package cache

// Keyer derives cache keys for each kind of cached entry.
type Keyer interface {
	// HTTPKey generates a key for a raw upstream response.
	HTTPKey(namespace, key string) string

	// ImageKey generates a key for a fetched source image.
	ImageKey(url string) string

	// CaptionKey generates a key for a generated caption reply.
	CaptionKey(opts CaptionKeyOpts) string

	// ArtifactKey generates a key for a composed postcard.
	ArtifactKey(imageHash string, opts ArtifactKeyOpts) string
}

// CaptionKeyOpts identifies a caption request.
type CaptionKeyOpts struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Style    string `json:"style,omitempty"`
	Input    string `json:"input"` // image URL or prompt text
}

// ArtifactKeyOpts identifies everything that influences a composed postcard
// besides the source image.
type ArtifactKeyOpts struct {
	Caption      string  `json:"caption"`
	SVG          string  `json:"svg,omitempty"`
	Layout       string  `json:"layout"`
	Format       string  `json:"format"`
	Quality      int     `json:"quality,omitempty"`
	MaxDimension int     `json:"max_dimension,omitempty"`
	FontSize     float64 `json:"font_size"`
	WrapMode     string  `json:"wrap_mode"`
}

// DefaultKeyer produces namespaced, hashed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// HTTPKey returns "http:<namespace>:<key>".
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// ImageKey hashes the URL so arbitrary query strings are safe as keys.
func (DefaultKeyer) ImageKey(url string) string {
	return hashKey("image", url)
}

// CaptionKey hashes all caption request fields.
func (DefaultKeyer) CaptionKey(opts CaptionKeyOpts) string {
	return hashKey("caption", opts)
}

// ArtifactKey hashes the image hash together with the composition options.
func (DefaultKeyer) ArtifactKey(imageHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", imageHash, opts)
}

var _ Keyer = DefaultKeyer{}
