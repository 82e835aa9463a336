package entity

// Cookie is a single record of the structured credential file uploaded by
// the frontend (browser cookie export).
type Cookie struct {
	Domain  string  `json:"domain"`
	Path    string  `json:"path"`
	Name    string  `json:"name"`
	Value   string  `json:"value"`
	Secure  bool    `json:"secure"`
	Expires float64 `json:"expirationDate,omitempty"`
}

// UploadResult reports the outcome of a credential upload.
type UploadResult struct {
	CookieCount      int
	StoriesSupported bool
}
