// Command dufs is a single-binary HTTP file server.
package main

import "github.com/dufs-go/dufs/cmd/dufs/cmd"

func main() {
	cmd.Execute()
}
