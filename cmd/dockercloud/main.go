package main

import (
	"os"

	"github.com/schmitthub/dockercloud/internal/dockercloud"
)

func main() {
	os.Exit(dockercloud.Main())
}
