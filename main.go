package main

import (
	"os"

	"github.com/nasuha-connect/nasuha-connect/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
