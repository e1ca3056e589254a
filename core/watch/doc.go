// Package watch turns file system events below a manifest directory into
// module ids, so a running loader can undefine modules whose manifests were
// edited and fetch them again on next use.
package watch
