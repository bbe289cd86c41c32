// Package scheduler runs bounded generations of unit processes.
//
// Each trigger event starts a new generation: the units are re-enumerated,
// every process of the previous generation is terminated, and up to the
// concurrency budget of processes is launched. Finished processes free
// their slot for the next pending unit. A single goroutine owns all
// generation state; the only input from other goroutines is the event
// [Source].
package scheduler
