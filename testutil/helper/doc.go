// Package helper provides test doubles and fixtures shared by the entitystore, workload and harness tests.
package helper
