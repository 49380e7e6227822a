// cmd/kmerwalk/main.go
package main

import (
	"kmerwalk/internal/app"
	"kmerwalk/internal/appshell"
)

func main() {
	appshell.Main(app.RunContext)
}
