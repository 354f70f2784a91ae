// Package application provides application initialization and dependency wiring.
// Run drives the one-shot discover, load, pack and save pipeline; New builds
// the HTTP service around the same packer, keeping the main package focused
// on CLI parsing and orchestration.
package application
