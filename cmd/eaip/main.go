package main

import (
	"eaipviewer/cmd/eaip/commands"
	"eaipviewer/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
