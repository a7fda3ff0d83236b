// Command hash-password prints the bcrypt hash to put in ADMIN_API_KEY_HASH.
// Without an argument it also generates the key.
package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/Yukky887/ReminderBot/internal/util"
)

func main() {
	var key string
	switch len(os.Args) {
	case 1:
		generated, err := util.GenerateToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		key = generated
		fmt.Printf("key:  %s\n", key)
	case 2:
		key = os.Args[1]
	default:
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/hash-password.go [admin api key]\n")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), 12)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) == 1 {
		fmt.Printf("hash: %s\n", hash)
		return
	}
	fmt.Println(string(hash))
}
