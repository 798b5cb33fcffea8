package main

import (
	"github.com/ESN-MoRe/members-manager/cmd/members-cli/commands"
	"github.com/ESN-MoRe/members-manager/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
