// Package metrics holds Prometheus metrics shared by the persistence layer
// and the worker: per-operation query latency and errors, and connection
// pool gauges. Domain metrics live next to the code that records them
// (notify, whatsapp webhook, worker jobs).
//
//	start := time.Now()
//	err := row.Scan(&n)
//	metrics.RecordDBQuery("count_total", time.Since(start), err)
package metrics
