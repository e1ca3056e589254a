package combo

// Config holds configuration for batching module fetches.
type Config struct {
	// Prefix separates the base from the file list of a combined URL.
	Prefix string `mapstructure:"combo_prefix" default:"??"`
	// Sep separates files in a combined URL.
	Sep string `mapstructure:"combo_sep" default:","`
	// MaxURILength caps the length of a combined URL.
	MaxURILength int `mapstructure:"max_uri_length" default:"2000"`
	// MaxFileNum caps the number of files in a combined URL.
	MaxFileNum int `mapstructure:"max_file_num" default:"40"`
	// Charset is sent with every request unless the package overrides it.
	Charset string `mapstructure:"charset" default:"utf-8"`
	// Lang is the locale tag sent with every request.
	Lang string `mapstructure:"lang" default:"zh-cn"`
	// Suffix is appended to every module path.
	Suffix string `mapstructure:"suffix" default:".yaml"`
	// Combine enables combined requests for packages that do not set it.
	Combine bool `mapstructure:"combine" default:"true"`
	// Base is the base of the default package.
	Base string `mapstructure:"base" default:"."`
	// Filter is the build variant of the default package (e.g. debug).
	Filter string `mapstructure:"filter" default:""`
	// Tag is a cache buster appended as ?t=<tag>.
	Tag string `mapstructure:"tag" default:""`
	// Packages maps package names to their settings.
	Packages map[string]Package `mapstructure:"packages"`
}

// DefaultPackage is the package of ids no configured package claims.
const DefaultPackage = "core"

// Package groups modules under a common base.
type Package struct {
	// Name is the id prefix claimed by the package.
	Name string `mapstructure:"name" yaml:"name"`
	// Base is the URL, bucket prefix or directory holding the manifests.
	Base string `mapstructure:"base" yaml:"base"`
	// Filter selects a build variant: module a resolves to a-<filter>.yaml.
	Filter string `mapstructure:"filter" yaml:"filter"`
	// Charset overrides the global charset.
	Charset string `mapstructure:"charset" yaml:"charset"`
	// Tag overrides the global cache buster.
	Tag string `mapstructure:"tag" yaml:"tag"`
	// Combine overrides the global combine switch.
	Combine *bool `mapstructure:"combine" yaml:"combine"`
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "??"
	}
	if c.Sep == "" {
		c.Sep = ","
	}
	if c.MaxURILength <= 0 {
		c.MaxURILength = 2000
	}
	if c.MaxFileNum <= 0 {
		c.MaxFileNum = 40
	}
	if c.Charset == "" {
		c.Charset = "utf-8"
	}
	if c.Lang == "" {
		c.Lang = "zh-cn"
	}
	if c.Suffix == "" {
		c.Suffix = ".yaml"
	}
	if c.Base == "" {
		c.Base = "."
	}
	return c
}
