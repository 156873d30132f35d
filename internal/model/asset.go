package model

// Asset is the source creative a job derives from.
type Asset struct {
	ID       string `json:"id"`
	AssetID  string `json:"asset_id"` // human-facing code, e.g. HP-ANI-00067
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Skill    string `json:"skill,omitempty"`

	PublicURL string `json:"public_url,omitempty"` // landing page linked from the PDF
}

// AssetSource is an asset together with its raw SVG markup.
type AssetSource struct {
	Asset      Asset  `json:"asset"`
	SVGContent string `json:"svgContent"`
}
