package main

import (
	"log"
)

var Verbose = false

func Logf(format string, args ...interface{}) {
	if !Verbose {
		return
	}
	log.Printf(format, args...)
}
