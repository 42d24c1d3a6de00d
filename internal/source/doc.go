// Package source turns a project's stored ZIP archive into a browsable tree.
//
// The archive is extracted once per project into the cache store, then every
// request works off the extracted copy: BuildTree walks it into an ordered
// tree of directories and files, Resolve maps a caller supplied relative path
// onto it, and OpenFile/ReadText return file contents. Resolution always
// happens on the canonical (symlink evaluated) path and anything that lands
// outside the project's cache directory is rejected with ErrForbidden.
package source
