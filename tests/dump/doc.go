/*
Package dump provides I/O operations for collected states of the Registry
contract.

A dump is a snapshot of the deployed Registry contract taken at some block:
its state (NEF, manifest, ID) and its storage restricted to profile ('p') and
transfer ('t') records. Dumps allow migration tests to restore "live" registry
data into a test chain and check that updates keep it intact.

Dumps are stored in the file system as a pair of human-readable files per
dump:

	<label>-<block>-registry.json  # contract state, JSON
	<label>-<block>-storage.csv    # key,value pairs, base64

Use Creator to write new dumps and IterateDumps or ReadDump to access them.
*/
package dump
