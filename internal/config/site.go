package config

// SiteConfig holds per-site overrides for a single documentation host.
// Keys in File.Sites are bare hostnames (e.g. "docs.example.com").
type SiteConfig struct {
	// Headers are custom HTTP headers to include in requests to this
	// site, e.g. an Authorization header for gated docs.
	Headers map[string]string `yaml:"headers,omitempty"`

	// CrawlDelayMs overrides the global crawl delay, in milliseconds.
	// Zero means use the global value.
	CrawlDelayMs int `yaml:"crawlDelayMs,omitempty"`

	// MaxPages overrides the global page limit. Zero means use the
	// global value.
	MaxPages int `yaml:"maxPages,omitempty"`

	// PathPrefix restricts discovery to URLs under this path, when the
	// docs live beside unrelated content (e.g. "/docs").
	PathPrefix string `yaml:"pathPrefix,omitempty"`

	// IgnorePatterns are URL path globs to skip during link-crawl
	// discovery (e.g. "/changelog/*", "*.pdf").
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`
}

// File represents the structure of the .docdex configuration file.
type File struct {
	// Sites maps hostnames to their overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults is applied to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the merged configuration for a hostname:
// defaults first, then site-specific values on top.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	if site, ok := cf.Sites[host]; ok {
		if len(site.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range site.Headers {
				result.Headers[k] = v
			}
		}
		if site.CrawlDelayMs != 0 {
			result.CrawlDelayMs = site.CrawlDelayMs
		}
		if site.MaxPages != 0 {
			result.MaxPages = site.MaxPages
		}
		if site.PathPrefix != "" {
			result.PathPrefix = site.PathPrefix
		}
		if len(site.IgnorePatterns) > 0 {
			result.IgnorePatterns = site.IgnorePatterns
		}
	}

	return result
}
