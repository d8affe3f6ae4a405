package main

import (
	"github.com/tuxcanfly/gpk/pkg/cmd"
)

func main() {
	cmd.Execute()
}
