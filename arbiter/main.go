// Command arbiter drives a robot description through the arbitration loop.
package main

import "github.com/sarchlab/motorarbiter/arbiter/cmd"

func main() {
	cmd.Execute()
}
