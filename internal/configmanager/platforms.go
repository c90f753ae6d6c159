package configmanager

// implicitPlatforms gives each provider's native OS family, used as a
// fallback support heuristic when the repository query itself is silent
// about whether a provider carries the package (spec §4.8).
var implicitPlatforms = map[string][]string{
	"apt":     {"linux"},
	"dnf":     {"linux"},
	"yum":     {"linux"},
	"zypper":  {"linux"},
	"pacman":  {"linux"},
	"apk":     {"linux"},
	"emerge":  {"linux"},
	"guix":    {"linux"},
	"nix":     {"linux", "macos"},
	"brew":    {"macos", "linux"},
	"winget":  {"windows"},
	"scoop":   {"windows"},
	"npm":     {"linux", "macos", "windows"},
	"pypi":    {"linux", "macos", "windows"},
	"cargo":   {"linux", "macos", "windows"},
	"docker":  {"linux", "macos", "windows"},
	"helm":    {"linux", "macos", "windows"},
}

// SupportsPlatform reports whether provider is plausibly relevant to
// software whose declared platforms are given. An empty platforms list (the
// software declares no platform constraint) is always supported. An unknown
// provider is assumed supported, since the heuristic only exists to rule
// providers *out* when there is positive evidence of disjointness.
func SupportsPlatform(provider string, platforms []string) bool {
	if len(platforms) == 0 {
		return true
	}
	native, known := implicitPlatforms[provider]
	if !known {
		return true
	}
	for _, p := range platforms {
		for _, n := range native {
			if p == n {
				return true
			}
		}
	}
	return false
}
