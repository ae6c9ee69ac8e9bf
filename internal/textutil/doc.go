// Package textutil normalizes caption text returned by captioning models.
package textutil
