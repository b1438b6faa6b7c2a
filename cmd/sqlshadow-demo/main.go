// sqlshadow-demo runs a small SQLite workload through the instrumented
// sqlx wrapper and serves what was recorded.
//
// Usage:
//
//	# Run the workload and serve /debug/sql and /metrics on :2112
//	sqlshadow-demo run --config sqlshadow.yaml
//
//	# Check a configuration file and print it with defaults applied
//	sqlshadow-demo config --config sqlshadow.yaml
//
//	# Read the newest records pushed to the Redis sink
//	sqlshadow-demo recent --config sqlshadow.yaml -n 20
package main

func main() {
	Execute()
}
