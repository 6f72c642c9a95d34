package main

import (
	"os"

	"github.com/apschool/hellocheck/internal/hello"
)

func main() {
	if err := hello.Print(os.Stdout); err != nil {
		os.Exit(1)
	}
}
