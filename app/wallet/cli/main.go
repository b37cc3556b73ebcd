// Package main runs the governance wallet.
package main

import "github.com/ardanlabs/poagov/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
