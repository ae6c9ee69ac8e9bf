// Package fileutil holds the filesystem helpers shared by the pipeline stages:
// atomic writes, extension-filtered directory listings, and the advisory lock
// that gives a stage exclusive ownership of its output directory.
package fileutil
