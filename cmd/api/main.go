package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/dialtone/internal/app"
)

func main() {
	fx.New(app.Module, app.GRPC).Run()
}
