// Command shift-runner runs the Shift browser UI automation suite.
package main

import "github.com/devicelab-dev/shift-runner/pkg/cli"

func main() {
	cli.Execute()
}
