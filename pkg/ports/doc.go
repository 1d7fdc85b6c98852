/*
Package ports defines the driven ports (interfaces) of the flow engine.

These interfaces decouple executions from where flow definitions come from and
where paused executions are kept between requests.

# Key Interfaces

  - FlowDefinitionLocator: resolves a flow id to a built Flow (memory registry, Loam).
  - ExecutionStore: persists execution snapshots (memory, file, Redis).
  - DistributedLocker: serializes access to one execution across replicas.
*/
package ports
