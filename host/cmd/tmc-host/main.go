package main

import (
	"os"

	"k8s.io/klog/v2"

	"tmcuart/host/cmd/tmc-host/app"
)

func main() {
	cmd := app.NewHostCmd()
	defer klog.Flush()
	if err := cmd.Execute(); err != nil {
		klog.ErrorS(err, "Command failed")
		klog.Flush()
		os.Exit(1)
	}
}
