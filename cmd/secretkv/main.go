// Command secret-kv manages a project-local encrypted key/value store.
package main

import "github.com/sammck/secret-kv/cmd/secretkv/cmd"

func main() {
	cmd.Execute()
}
