/*
Package auditor implements the daemon running the keytrace auditor
service.

The daemon periodically replays a directory's log entries into its
own copy of the log tree, verifies the directory's signed tree heads
against the replayed roots, and pushes its freshly signed view back
to the directory for distribution to clients.

Note: The auditor keeps its replayed log in memory only, and does not
accept auditing requests from keytrace clients.
*/
package auditor
