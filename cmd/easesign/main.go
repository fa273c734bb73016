// easesign prints the hex HMAC-SHA256 digest of a request body under a
// shared secret, for producing valid webhook signatures without running the
// service.
//
// Usage: easesign <json-body> <secret>
package main

import (
	"fmt"
	"os"

	"github.com/easebot/rankledger/internal/signature"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: easesign <json-body> <secret>")
		os.Exit(1)
	}
	fmt.Println(signature.Sign([]byte(os.Args[1]), os.Args[2]))
}
