// Утилита генерации значения API_PASSWORD_HASH.
//
// Использование:
//
//	go run ./cmd/hashpw 'секретный-пароль'
package main

import (
	"fmt"
	"os"

	"statarb/pkg/crypto"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hashpw <password>")
		os.Exit(2)
	}

	hash, err := crypto.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashpw: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
