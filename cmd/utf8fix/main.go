package main

import (
	"utf8fix/cmd/utf8fix/commands"
	"utf8fix/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
