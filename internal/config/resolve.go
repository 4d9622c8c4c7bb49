package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/agentic-research/facade/api"
	"github.com/agentic-research/facade/internal/locator"
)

// CLINamespace is the namespace used outside of an HTTP request.
const CLINamespace = "cli"

// Settings are the effective settings of one namespace.
type Settings struct {
	Namespace   string
	Chain       []string
	Charset     string
	Debug       bool
	LogLevel    slog.Level
	Location    *time.Location
	SiteBase    string
	Cache       bool
	Filters     []api.Filter
	ViewPlugins []string
	InitPlugins []string
}

// Resolve merges the sections of every namespace in active's override chain.
// More specific namespaces win field by field; filters merge by name and keep
// the order in which they were first declared.
func Resolve(site *api.Site, active string) (*Settings, error) {
	chain, err := locator.Chain(site.Links(), active)
	if err != nil {
		return nil, err
	}

	merged := api.Namespace{Name: chain[0]}
	var filters []api.Filter
	for i := len(chain) - 1; i >= 0; i-- {
		sec, ok := site.Lookup(chain[i])
		if !ok {
			continue
		}
		overlay(&merged, sec)
		filters = mergeFilters(filters, sec.Filters)
	}

	s := &Settings{
		Namespace:   chain[0],
		Chain:       chain,
		Charset:     "UTF-8",
		LogLevel:    slog.LevelInfo,
		Location:    time.UTC,
		SiteBase:    merged.SiteBase,
		Filters:     filters,
		ViewPlugins: merged.ViewPlugins,
		InitPlugins: merged.InitPlugins,
	}
	if merged.Charset != "" {
		s.Charset = merged.Charset
	}
	if merged.Debug != nil {
		s.Debug = *merged.Debug
	}
	if merged.Cache != nil {
		s.Cache = *merged.Cache
	}
	if merged.LogLevel != "" {
		if err := s.LogLevel.UnmarshalText([]byte(merged.LogLevel)); err != nil {
			return nil, fmt.Errorf("namespace %s: log_level: %w", s.Namespace, err)
		}
	} else if s.Debug {
		s.LogLevel = slog.LevelDebug
	}
	if merged.Timezone != "" {
		loc, err := time.LoadLocation(merged.Timezone)
		if err != nil {
			return nil, fmt.Errorf("namespace %s: timezone: %w", s.Namespace, err)
		}
		s.Location = loc
	}
	return s, nil
}

func overlay(dst, src *api.Namespace) {
	if src.Charset != "" {
		dst.Charset = src.Charset
	}
	if src.Debug != nil {
		dst.Debug = src.Debug
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.Timezone != "" {
		dst.Timezone = src.Timezone
	}
	if src.SiteBase != "" {
		dst.SiteBase = src.SiteBase
	}
	if src.Cache != nil {
		dst.Cache = src.Cache
	}
	if src.ViewPlugins != nil {
		dst.ViewPlugins = src.ViewPlugins
	}
	if src.InitPlugins != nil {
		dst.InitPlugins = src.InitPlugins
	}
}

func mergeFilters(base, more []api.Filter) []api.Filter {
	out := append([]api.Filter(nil), base...)
	for _, f := range more {
		replaced := false
		for i := range out {
			if out[i].Name == f.Name {
				out[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, f)
		}
	}
	return out
}

// NamespaceForHost maps a request host to a namespace. A namespace listing
// the host in its hosts attribute wins; otherwise the host itself, with dots
// and dashes turned into underscores, names the namespace when configured.
// fallback is returned when nothing matches.
func NamespaceForHost(site *api.Site, host, fallback string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	if site == nil || host == "" {
		return fallback
	}
	for _, ns := range site.Namespaces {
		for _, h := range ns.Hosts {
			if strings.EqualFold(h, host) {
				return ns.Name
			}
		}
	}
	name := strings.NewReplacer(".", "_", "-", "_").Replace(host)
	if _, ok := site.Lookup(name); ok {
		return name
	}
	return fallback
}
