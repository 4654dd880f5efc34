package main

import (
	"github.com/ValentinKolb/netq/cmd"
)

func main() {
	cmd.Execute()
}
