package main

import (
	"github.com/memberhub-io/memberhub/app"
)

func main() {
	app.New(nil).Run()
}
