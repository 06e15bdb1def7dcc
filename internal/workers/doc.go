/*
Package workers sizes bounded pools from the CPUs actually available to the
process.

runtime.NumCPU reports the host's CPUs even inside a container with a CPU
limit; GOMAXPROCS follows the cgroup limit (Go 1.19+), so Count uses it:

	// one rasterizer per CPU, never more than four
	slots := workers.ForCPU(4)

# Environment Variable Override

RENDER_WORKERS pins the count. Invalid or non-positive values are ignored and
the limit still applies:

	RENDER_WORKERS=2 ./paper-reader
*/
package workers
