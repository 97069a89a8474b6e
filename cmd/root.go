package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "rfpflow"}

	root.AddCommand(workerCMD(), versionCMD())
	_ = root.Execute()
}
