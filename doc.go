// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package switchyard provides an HTTP server built from a route table,
// composable middleware pipelines and convention driven controllers.
//
// The package is built around a few core abstractions:
//
//   - [router.Router]: the route table and dispatcher, embedded in [Server]
//   - [pipeline.Middleware]: a unit of per request logic which advances or fails a pipeline
//   - [lifecycle.Bus]: notifies extensions of controller and server events
//   - [Extension]: add-on capabilities, such as [Controllers], built on the above
//
// # Basic Usage
//
// Register routes and middleware directly:
//
//	srv := switchyard.New(switchyard.Addr(config.Env("ADDR")))
//	srv.Use(logRequests)
//	srv.Get("/users/:id", pipeline.HandlerFunc(showUser))
//
// Or bind a directory of controllers:
//
//	err := srv.Extend(ctx, switchyard.Controllers(
//	    controller.Registry{"users/index": users.New},
//	    "controllers",
//	    []string{"**/*.yaml"},
//	    controller.Values{"db": db},
//	))
//
// Run the server with signal handling and panic recovery:
//
//	err := switchyard.Run(context.Background(), srv, os.Interrupt)
package switchyard
