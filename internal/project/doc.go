// Package project is the read side of the content store: it persists project
// rows in SQLite and hands out random-access handles to each project's stored
// source archive. Archives live on disk (typically under
// MediaRoot/project_sources) and only their path is kept in the database.
package project
