// Package main is the entry point for the CodeQuery Chat Service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/codequery/cmd/chat/app"
)

func main() {
	app.NewApp().Run()
}
