package browser

// Fingerprint is the device, locale and header profile applied to every page.
type Fingerprint struct {
	UserAgent      string
	Platform       string
	AcceptLanguage string
	Locale         string
	Timezone       string
	Width          int
	Height         int
	Headers        map[string]string
}

// DefaultFingerprint is a desktop Chrome 131 on Windows.
func DefaultFingerprint() Fingerprint {
	return Fingerprint{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Platform:       "Win32",
		AcceptLanguage: "en-US,en;q=0.9,tr;q=0.8",
		Locale:         "en-US",
		Timezone:       "Europe/Istanbul",
		Width:          1920,
		Height:         1080,
		Headers: map[string]string{
			"Accept-Language":           "en-US,en;q=0.9,tr;q=0.8",
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Encoding":           "gzip, deflate, br, zstd",
			"Cache-Control":             "max-age=0",
			"Sec-Ch-Ua":                 `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
			"Sec-Ch-Ua-Mobile":          "?0",
			"Sec-Ch-Ua-Platform":        `"Windows"`,
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Sec-Fetch-User":            "?1",
			"Upgrade-Insecure-Requests": "1",
			"DNT":                       "1",
		},
	}
}
