package facade

import (
	"github.com/agentic-research/facade/cmd"
	"github.com/agentic-research/facade/internal/config"
	"github.com/agentic-research/facade/internal/dispatch"
	"github.com/agentic-research/facade/internal/engine"
	"github.com/agentic-research/facade/internal/layout"
)

type (
	Controller  = dispatch.Controller
	Factory     = dispatch.Factory
	Binding     = dispatch.Binding
	Request     = dispatch.Request
	Base        = dispatch.Base
	Action      = dispatch.Action
	Methods     = dispatch.Methods
	Simple      = dispatch.Simple
	AjaxMethods = dispatch.AjaxMethods
	Ajax        = dispatch.Ajax
	Halt        = dispatch.Halt

	Filter         = layout.Filter
	Env            = layout.Env
	Page           = layout.Page
	ViewPlugin     = layout.ViewPlugin
	ViewPluginFunc = layout.ViewPluginFunc

	Settings       = config.Settings
	InitPlugin     = engine.InitPlugin
	InitPluginFunc = engine.InitPluginFunc
)

// Global registers a controller for every namespace.
const Global = dispatch.Global

// SimpleFactory returns a Factory producing Simple controllers.
func SimpleFactory(m Methods) Factory { return dispatch.SimpleFactory(m) }

// AjaxFactory returns a Factory producing Ajax controllers.
func AjaxFactory(m AjaxMethods) Factory { return dispatch.AjaxFactory(m) }

// Register adds the controller name to namespace.
func Register(namespace, name string, f Factory) {
	cmd.Ext.Controllers.Register(namespace, name, f)
}

// RegisterFilter adds an output filter that configuration and views can
// name.
func RegisterFilter(name string, f Filter) {
	cmd.Ext.Filters.Register(name, f)
}

// RegisterViewPlugin adds a view plugin that configuration can name.
func RegisterViewPlugin(name string, p ViewPlugin) {
	cmd.Ext.ViewPlugins.Register(name, p)
}

// RegisterInitPlugin adds an init plugin that configuration can name.
func RegisterInitPlugin(name string, p InitPlugin) {
	cmd.Ext.InitPlugins.Register(name, p)
}

// Execute runs the facade command line with everything registered so far.
func Execute() { cmd.Execute() }
