// Package cache owns the on-disk extraction area for project source archives.
// Every project gets exactly one directory, MediaRoot/zip_cache/<projectID>,
// created lazily and kept across requests. The store hands out those
// directories, serialises work per project through a ref-counted lock map and
// offers a staging area so that an extraction is swapped in whole or not at
// all. Nothing else in the process writes below zip_cache.
package cache
