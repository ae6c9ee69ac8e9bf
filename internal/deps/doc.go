// Package deps checks for the external binaries vlmprep shells out to and
// checks the host for inference accelerators.
package deps
