package main

import (
	"fmt"
	"os"
)

func helper() {
	os.Exit(2)
}

func main() {
	defer fmt.Println("deferred")
	go func() {
		os.Exit(3)
	}()
	if len(os.Args) > 5 {
		os.Exit(1) // want "direct call to os.Exit in main function is prohibited"
	}
	helper()
}
