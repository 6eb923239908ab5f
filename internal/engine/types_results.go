package engine

// ExportImageResult represents the result of an image export.
type ExportImageResult struct {
	// Target is the normalized target address
	Target string

	// Bands are the exported band names in order
	Bands []string

	// CollectionID is the image-collection record id (store targets only)
	CollectionID string

	// ImageID is the image record id (store targets only)
	ImageID string

	// Checksum is the payload checksum (store targets only)
	Checksum string

	// Size is the encoded payload size in bytes (store targets only)
	Size int64
}

// ExportTableResult represents the result of a feature collection export.
type ExportTableResult struct {
	// Target is the normalized target address
	Target string

	// CollectionID is the feature-collection record id (store targets only)
	CollectionID string

	// Written is the number of features written
	Written int

	// Replaced is the number of prior feature rows removed (store targets only)
	Replaced int
}
