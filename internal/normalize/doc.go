// Package normalize resizes a directory of images to square RGB images of a
// fixed resolution, keeping file names. What happens to unreadable inputs is
// governed by FailurePolicy: abort (default) or skip.
package normalize
