// Package facade is a namespaced MVC web framework. A request runs through a
// chain of controllers, resolves a view from the hierarchy of view files,
// and renders it inside a layout with priority-ordered output filters.
//
// Applications register their controllers and plugins, then hand over to
// the command line:
//
//	func main() {
//		facade.Register(facade.Global, "blog", facade.SimpleFactory(facade.Methods{
//			Get: func(ctx context.Context, c *facade.Base) error {
//				c.Set("posts", loadPosts(ctx))
//				return nil
//			},
//		}))
//		facade.Execute()
//	}
package facade
