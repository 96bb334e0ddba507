package main // import "github.com/saasbill/billing"

import (
	"os"

	"github.com/saasbill/billing/command"
)

func main() {
	os.Exit(command.Run(os.Args[1:]))
}
