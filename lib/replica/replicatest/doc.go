// Package replicatest provides a shared test suite and benchmarks for
// register backends (see lib/replica). Every backend runs the same checks:
// empty registers read as empty, compare-and-set has exactly one winner,
// an empty value resets a register, Get returns a copy, and concurrent
// increments through cas.Long are never lost. A concurrent history of reads
// and compare-and-sets on one register must pass porcupine's linearizability
// check.
package replicatest
