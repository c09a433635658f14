// Package venues holds the fixed venue enumeration that partitions characters
// and tags into independent campaigns. The default list ships embedded and can
// be overridden from a YAML fixture at startup.
package venues
