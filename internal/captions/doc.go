// Package captions annotates a directory of images with model-generated
// captions and persists the result as a JSON object from file name to caption.
//
// The Annotator isolates failures per image: a file that cannot be decoded, a
// model error, a timeout, or an empty caption leaves that image out of the
// store and the run continues. The store is written once, atomically, after
// every image was attempted.
package captions
