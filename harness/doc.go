// Package harness runs workload units from many concurrent workers against one store and
// aggregates what they observed.
//
// Each worker owns a private XorShift generator and picks entity IDs from its own Band, so a
// worker mostly collides with itself across iterations (exercising compaction), while the band
// layout decides how much workers contend with each other. All workers are released by one start
// barrier after they were spawned, and a session ends when every worker finished its iterations.
package harness
