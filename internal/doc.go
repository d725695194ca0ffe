// Package internal contains the implementation packages of stencil.
//
// # Package Organization
//
//   - plugin: the compilation orchestrator and the host contract
//   - deps: the dependency tracker and change detector
//   - entries: glob resolution of entries, partials and components
//   - pathing: output path computation from [name] and [path] patterns
//   - data: render data loading and JSONPath selection
//   - renderer: Handlebars, Go template and templ component engines
//   - output: routing of rendered pages to memory assets or disk
//   - errors: the error taxonomy, collector and browser overlay
//   - host: a standalone host that drives plugins outside a bundler
//   - watcher: debounced file watching
//   - server, websocket, middleware: the live-reload dev server
//   - publish: upload of built assets to S3-compatible storage
//   - config, logging, version: the ambient stack of the CLI
//
// # Data Flow
//
// The host delivers a compile signal carrying the files modified since the
// last run. The plugin asks deps whether any tracked file changed and, if
// so, runs one pass: data, components, partials and entries are resolved
// and every read is recorded; each entry is rendered and routed. The emit
// signal then declares every tracked file and hands over the in-memory
// assets. The watcher feeds the next compile signal.
package internal
