package main

import (
	"os"

	"github.com/memoirly/memoir-backend/memoirservice"
)

func main() {
	if err := memoirservice.Run(); err != nil {
		os.Exit(1)
	}
}
