package main

import (
	"os"

	"github.com/spf13/cobra"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 服务名称
	Name = "news_crawler"
	// Version 服务版本号
	Version string

	id, _ = os.Hostname()
)

func main() {
	var root = &cobra.Command{
		Use:          "news_crawler",
		Short:        "Scheduled news crawler with LLM summarisation",
		SilenceUsage: true,
	}

	root.AddCommand(serveCMD(), onceCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
