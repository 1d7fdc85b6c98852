/*
Package session serializes access to persisted executions.

A Manager pairs an ExecutionStore with per-key locks so that only one request
mutates an execution at a time. With a DistributedLocker the guarantee extends
across replicas sharing the same store.
*/
package session
