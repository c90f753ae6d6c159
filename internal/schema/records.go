package schema

// Leaf record shapes, one per container in the metadata document (spec.md
// §3). Fields are optional by default (a leaf record may set only the
// fields it needs to override); validate tags constrain format/range only
// for fields that are present, never presence itself — absence means
// "inherit" at the template layer, not a schema violation.

type PackageRecord struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type ServiceRecord struct {
	ServiceName string `mapstructure:"service_name"`
	Enabled     *bool  `mapstructure:"enabled"`
}

type DirectoryRecord struct {
	Path  string `mapstructure:"path" validate:"omitempty"`
	Owner string `mapstructure:"owner"`
	Group string `mapstructure:"group"`
	Mode  string `mapstructure:"mode" validate:"omitempty,len=4,numeric"`
}

type FileRecord struct {
	Path  string `mapstructure:"path" validate:"omitempty"`
	Owner string `mapstructure:"owner"`
	Group string `mapstructure:"group"`
	Mode  string `mapstructure:"mode" validate:"omitempty,len=4,numeric"`
}

type ProcessRecord struct {
	Pattern string `mapstructure:"pattern"`
}

type PortRecord struct {
	Port        int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Protocol    string `mapstructure:"protocol" validate:"omitempty,oneof=tcp udp"`
	Description string `mapstructure:"description"`
}

type ContainerRecord struct {
	Image string `mapstructure:"image"`
	Tag   string `mapstructure:"tag"`
}

type ChartRecord struct {
	Name       string `mapstructure:"name"`
	Repository string `mapstructure:"repository" validate:"omitempty,url"`
	Version    string `mapstructure:"version"`
}

type RepoRecord struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url" validate:"omitempty,url"`
	Type string `mapstructure:"type"`
}

// recordFactories maps a container's top-level key to a constructor for its
// leaf record type; validateContainer decodes each slot into a fresh record
// from this table, since mapstructure.Decode needs a concrete destination.
var recordFactories = map[string]func() interface{}{
	"packages":    func() interface{} { return &PackageRecord{} },
	"services":    func() interface{} { return &ServiceRecord{} },
	"directories": func() interface{} { return &DirectoryRecord{} },
	"files":       func() interface{} { return &FileRecord{} },
	"processes":   func() interface{} { return &ProcessRecord{} },
	"ports":       func() interface{} { return &PortRecord{} },
	"containers":  func() interface{} { return &ContainerRecord{} },
	"charts":      func() interface{} { return &ChartRecord{} },
	"repos":       func() interface{} { return &RepoRecord{} },
}
