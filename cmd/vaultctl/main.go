package main

import "github.com/vaultdb/vaultdb/cmd/vaultctl/cmd"

func main() {
	cmd.Execute()
}
