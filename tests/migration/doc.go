/*
Package migration provides framework to test migration of the Registry smart
contract.

The contract stores identity profiles and reputation counters which must
survive contract updates without loss. The package provides services of Neo
blockchain and the contract needed for testing. Test blockchain environment can
be based on "real" data pulled from the remote blockchain instances.
*/
package migration
