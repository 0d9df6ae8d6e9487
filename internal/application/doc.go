// Package application provides application initialization and dependency wiring.
// It connects the resolved tool configuration with the make.conf loader, the
// overlay registry, and the file watcher, making the main package cleaner and
// more focused on CLI parsing and orchestration.
package application
