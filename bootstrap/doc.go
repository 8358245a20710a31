// Package bootstrap runs the application lifecycle: components start in
// registration order, the lifespan function runs once they are up, and on
// shutdown the lifespan teardown runs before components stop in reverse.
//
//	settings, _ := config.Load("appcore")
//	app, _ := bootstrap.NewApp(settings)
//	app.RegisterComponent(dbComponent)
//	app.RegisterComponent(server.NewComponent(srv))
//	app.Lifespan(func(ctx context.Context, a *bootstrap.App) (bootstrap.Hook, error) {
//	    return teardown, setup(ctx)
//	})
//	err := app.Run(ctx)
package bootstrap
