package domain

// PixelDimensions is the pixel size of an uploaded artwork.
type PixelDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both axes are positive.
func (p PixelDimensions) Valid() bool {
	return p.Width > 0 && p.Height > 0
}

// ArtworkDimensions groups the known dimensions of an artwork.
type ArtworkDimensions struct {
	Pixels *PixelDimensions `json:"pixels,omitempty"`
}

// ArtworkData describes the last artwork a customer uploaded.
type ArtworkData struct {
	FileName   string            `json:"fileName,omitempty"`
	Format     string            `json:"format,omitempty"`
	Dimensions ArtworkDimensions `json:"dimensions"`
}

// Pixels returns the pixel dimensions when they are known and valid.
func (a *ArtworkData) Pixels() (PixelDimensions, bool) {
	if a == nil || a.Dimensions.Pixels == nil || !a.Dimensions.Pixels.Valid() {
		return PixelDimensions{}, false
	}
	return *a.Dimensions.Pixels, true
}

// Clone returns a deep copy.
func (a ArtworkData) Clone() ArtworkData {
	out := a
	if a.Dimensions.Pixels != nil {
		px := *a.Dimensions.Pixels
		out.Dimensions.Pixels = &px
	}
	return out
}
