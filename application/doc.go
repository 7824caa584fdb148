/*
Package application is a library for building compatible keytrace
clients, servers and auditors.

application implements the server- and client-side application-layer
components of the keytrace key transparency system. More specifically,
application provides an API for building key directory servers,
auditors that replay and co-sign a directory's log, and client
applications.

Encoding

This module implements the message encoding and decoding for client-server
communications. Currently this module only supports JSON encoding.

Logger

This module implements a generic logging system that can be used by any
keytrace application/executable.

ServerBase

This module provides an API for implementing any keytrace server-side
functionality (the key directory server, or any other request-serving
process built on the same protocol).
*/
package application
