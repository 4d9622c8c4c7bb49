package layout

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cast"

	"github.com/agentic-research/facade/api"
)

// ViewFilterPriority is the fixed priority of filters named by a view.
const ViewFilterPriority = api.DefaultPriority

// Filter transforms the fully rendered output.
type Filter func(out string, env *Env) string

// FilterSpec is a filter name with its priority.
type FilterSpec struct {
	Name     string
	Priority int
}

// SpecsFromConfig converts configured global filters.
func SpecsFromConfig(fs []api.Filter) []FilterSpec {
	out := make([]FilterSpec, len(fs))
	for i, f := range fs {
		out[i] = FilterSpec{Name: f.Name, Priority: f.Prio()}
	}
	return out
}

// Filters is the set of output filters available by name.
type Filters struct {
	mu sync.RWMutex
	m  map[string]Filter
}

// NewFilters returns a set holding the built-in filters.
func NewFilters() *Filters {
	f := &Filters{m: make(map[string]Filter)}
	f.Register("compress", Compress)
	f.Register("sitebase", SiteBase)
	return f
}

// Register adds or replaces a filter.
func (f *Filters) Register(name string, fn Filter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[name] = fn
}

// Lookup returns the named filter.
func (f *Filters) Lookup(name string) (Filter, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn, ok := f.m[name]
	return fn, ok
}

// Order merges global filters with the filters a view asks for, which always
// run at ViewFilterPriority, and sorts them by descending priority. Filters
// sharing a priority keep their registration order, globals first.
func Order(globals []FilterSpec, viewFilters []string) []FilterSpec {
	specs := make([]FilterSpec, 0, len(globals)+len(viewFilters))
	specs = append(specs, globals...)
	for _, name := range viewFilters {
		specs = append(specs, FilterSpec{Name: name, Priority: ViewFilterPriority})
	}
	sort.SliceStable(specs, func(i, j int) bool { return specs[i].Priority > specs[j].Priority })
	return specs
}

// Chain resolves ordered specs to filter functions.
func (f *Filters) Chain(specs []FilterSpec) ([]Filter, error) {
	out := make([]Filter, 0, len(specs))
	for _, s := range specs {
		fn, ok := f.Lookup(s.Name)
		if !ok {
			return nil, fmt.Errorf("unknown filter %q", s.Name)
		}
		out = append(out, fn)
	}
	return out, nil
}

// viewFilters reads the filters metadata, a single name or a list.
func viewFilters(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return cast.ToStringSlice(v)
	}
}

var (
	blockComment = regexp.MustCompile(`/\*[^*]*\*+([^/][^*]*\*+)*/`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Compress removes /* */ comments and collapses whitespace runs to a space.
func Compress(out string, _ *Env) string {
	out = blockComment.ReplaceAllString(out, " ")
	return whitespace.ReplaceAllString(out, " ")
}

var (
	absAttr     = regexp.MustCompile(`(href|action|src)=(["'])/([^"']*)(["'])`)
	assetPrefix = regexp.MustCompile(`(["'])/(skin|image|upload|script)/`)
)

// SiteBase prefixes absolute links and asset paths with the site base, so a
// site mounted below a path prefix keeps working links.
func SiteBase(out string, env *Env) string {
	base := "/"
	if env != nil {
		base = normalizeBase(env.SiteBase)
	}
	if base == "/" {
		return out
	}
	out = absAttr.ReplaceAllString(out, "${1}=${2}"+escapeRepl(base)+"${3}${4}")
	return assetPrefix.ReplaceAllString(out, "${1}"+escapeRepl(base)+"${2}/")
}

func normalizeBase(b string) string {
	b = "/" + strings.Trim(b, "/") + "/"
	if b == "//" {
		return "/"
	}
	return b
}

func escapeRepl(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
