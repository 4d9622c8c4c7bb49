// Package api holds the public configuration schema. One file describes
// every namespace a deployment serves; the same structure decodes from HCL,
// JSON, TOML and YAML.
package api

// Site represents the root of a configuration file.
type Site struct {
	// Namespaces are the configured contexts. Each can override another one.
	Namespaces []Namespace `hcl:"namespace,block" toml:"namespace" yaml:"namespaces" json:"namespaces"`
}

// Namespace is one named configuration context. Unset fields inherit from
// the namespace it overrides, ending at "default".
type Namespace struct {
	// Name identifies the namespace; it is also the directory name under
	// views/ and layouts/.
	Name string `hcl:"name,label" toml:"name" yaml:"name" json:"name"`
	// Overrides names the less specific namespace. Empty means "default".
	Overrides string `hcl:"overrides,optional" toml:"overrides" yaml:"overrides" json:"overrides,omitempty"`
	// Hosts are extra virtual host names served by this namespace.
	Hosts []string `hcl:"hosts,optional" toml:"hosts" yaml:"hosts" json:"hosts,omitempty"`

	Charset  string `hcl:"charset,optional" toml:"charset" yaml:"charset" json:"charset,omitempty"`
	Debug    *bool  `hcl:"debug,optional" toml:"debug" yaml:"debug" json:"debug,omitempty"`
	LogLevel string `hcl:"log_level,optional" toml:"log_level" yaml:"log_level" json:"log_level,omitempty"`
	Timezone string `hcl:"timezone,optional" toml:"timezone" yaml:"timezone" json:"timezone,omitempty"`
	// SiteBase is the URL prefix the sitebase filter rewrites absolute links with.
	SiteBase string `hcl:"site_base,optional" toml:"site_base" yaml:"site_base" json:"site_base,omitempty"`
	// Cache enables the rendered page cache for views that ask for it.
	Cache *bool `hcl:"cache,optional" toml:"cache" yaml:"cache" json:"cache,omitempty"`

	// Filters are the global output filters, applied to every render.
	Filters []Filter `hcl:"filter,block" toml:"filter" yaml:"filters" json:"filters,omitempty"`
	// ViewPlugins run on the render-local metadata before the layout.
	ViewPlugins []string `hcl:"view_plugins,optional" toml:"view_plugins" yaml:"view_plugins" json:"view_plugins,omitempty"`
	// InitPlugins run once per request before dispatch.
	InitPlugins []string `hcl:"init_plugins,optional" toml:"init_plugins" yaml:"init_plugins" json:"init_plugins,omitempty"`
}

// Filter registers a global output filter.
type Filter struct {
	Name string `hcl:"name,label" toml:"name" yaml:"name" json:"name"`
	// Priority orders filters, highest first. Unset means 50.
	Priority *int `hcl:"priority,optional" toml:"priority" yaml:"priority" json:"priority,omitempty"`
}

// DefaultPriority is the priority of filters that do not declare one.
const DefaultPriority = 50

// Prio returns the filter priority, DefaultPriority when unset.
func (f Filter) Prio() int {
	if f.Priority == nil {
		return DefaultPriority
	}
	return *f.Priority
}

// Lookup returns the namespace section named name.
func (s *Site) Lookup(name string) (*Namespace, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Namespaces {
		if s.Namespaces[i].Name == name {
			return &s.Namespaces[i], true
		}
	}
	return nil, false
}

// Links maps every namespace to the one it overrides.
func (s *Site) Links() map[string]string {
	links := make(map[string]string)
	if s == nil {
		return links
	}
	for _, ns := range s.Namespaces {
		links[ns.Name] = ns.Overrides
	}
	return links
}
