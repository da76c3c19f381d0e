// Command l1es simulates CPU caches and demonstrates timing side-channel
// attacks against them.
package main

import "github.com/sarchlab/l1es/l1es/cmd"

func main() {
	cmd.Execute()
}
