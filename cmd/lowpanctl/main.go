// Command lowpanctl is a local CLI for building and inspecting 802.15.4
// frames and their 6LoWPAN IPHC compression, without a running daemon.
package main

import (
	"github.com/mistlib/lowpan154/cmd/lowpanctl/commands"
)

func main() {
	commands.Execute()
}
