// Package preflight provides readiness checks for the filesystem paths,
// binaries and caption model endpoint vlmprep depends on.
//
// The `vlmprep doctor` command runs RunAll and CheckSystemDeps and renders
// the results as a table. Individual checks are exported so commands can
// verify a single dependency before starting work.
package preflight
