// Package cmd provides the command-line interface for stencil.
//
// # Available Commands
//
//   - build: render every entry once and write the output directory
//   - watch: rebuild on every change to a tracked file
//   - serve: watch and serve the output with live reload
//   - version: print build information
//
// # Configuration
//
// Commands read .stencil.yml from the working directory, or the file named
// by --config or STENCIL_CONFIG_FILE. Every key can be overridden by a
// STENCIL_ environment variable; a .env file in the working directory is
// loaded first.
//
//	stencil build --publish
//	STENCIL_SERVER_PORT=3000 stencil serve
package cmd
