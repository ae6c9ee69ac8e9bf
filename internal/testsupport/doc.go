// Package testsupport provides test helpers shared across packages: config
// builders rooted in temp directories, stubbed external binaries, and image
// fixtures.
package testsupport
