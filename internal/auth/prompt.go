package auth

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ReadPasswordMasked prompts on stdout and reads a password from the
// terminal, echoing asterisks. Falls back to plain hidden input when
// the terminal cannot be put into raw mode.
func ReadPasswordMasked(prompt string) string {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		password, _ := term.ReadPassword(fd)
		fmt.Println()
		return string(password)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
	}()

	var password []byte
	reader := bufio.NewReader(os.Stdin)
	for {
		ch, _, err := reader.ReadRune()
		if err != nil {
			break
		}
		switch ch {
		case '\n', '\r':
			fmt.Println()
			return string(password)
		case 127, 8: // backspace / delete
			if len(password) > 0 {
				password = password[:len(password)-1]
				fmt.Print("\b \b")
			}
		case 3: // ctrl-c
			fmt.Println()
			os.Exit(1)
		default:
			if ch >= 32 && ch <= 126 {
				password = append(password, byte(ch))
				fmt.Print("*")
			}
		}
	}
	fmt.Println()
	return string(password)
}
