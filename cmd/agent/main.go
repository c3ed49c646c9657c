// Command agent is the host intrusion detection agent: it runs the
// collector/rule-engine/writer pipeline as a long-lived foreground
// process, the same shape as the teacher repository's own cmd/agent
// entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/cmd/agent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
