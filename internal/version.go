// Package internal defines values shared by the keytrace executables.
package internal

// Version is the current release of the keytrace tools.
const Version = "0.1.0"
