// Package internal contains the implementation packages of the cydonia CLI.
//
// # Package Organization
//
//   - config: manifest loading with viper, flag and environment overrides
//   - post: filename and front matter parsing, markdown rendering, ordering
//   - theme: stylesheet and highlight asset assembly
//   - renderer: html/template pages and the output tree
//   - build: change classification, incremental plans and build metrics
//   - watcher: fsnotify batches over the tracked roots
//   - livereload: reload fan-out to websocket clients
//   - server: preview HTTP server
//   - services: build, init, watch and serve workflows used by cmd
//   - errors, logging, fsutil, version, testutils: shared support
//
// # Data Flow
//
// A watch session loads the manifest once, renders everything, then turns
// each batch of filesystem events into a build.Plan. The plan is applied on
// the watch goroutine, which is the only writer of the output tree, and a
// successful non-empty plan publishes one reload message through the hub.
// The preview server only reads the output tree.
package internal
