// Package discovery lists candidate image files in a directory using glob patterns.
package discovery
