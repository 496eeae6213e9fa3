package resolver

// ImageSource indicates where an image reference was resolved from.
type ImageSource string

const (
	ImageSourceExplicit ImageSource = "explicit" // Named by the image profile
	ImageSourceDefault  ImageSource = "default"  // From the resolver's default image
)

// ResolvedImage contains the result of image resolution with source tracking.
type ResolvedImage struct {
	Reference string      // Fully qualified reference (registry/repo:tag or @digest)
	Source    ImageSource // Where the image was resolved from
}
