/*
Package protocol is a library for building compatible key transparency
clients and servers.

protocol implements the common pieces of the transparency log protocol
spoken between a key directory, its clients, and its auditor. More
specifically, protocol defines the wire messages exchanged by the three
parties, the signed tree head format, and the deterministic search and
monitoring paths over log positions that provers and verifiers must
agree on.

Error

This module defines the constants representing the types of errors that
a directory or auditor may return to a client, and the results of the
proof verifications a client performs.

Message

This module defines the message format of the client requests and the
corresponding directory responses for each protocol operation. It also
provides constructors for the response messages.

Ladder

This module implements the binary search over log positions that point
lookups are built on, and the checkpoint and frontier walks that
monitoring is built on. Provers and verifiers step the same code so
that both sides derive identical position sequences.

Tree Head

This module defines the canonical signing format for tree heads, for
both the directory's own heads and the heads countersigned by an
auditor, together with the corresponding verification routines.
*/
package protocol
