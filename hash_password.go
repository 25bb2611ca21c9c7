package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var hashCost int

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for a users[].password_hash entry",
	Long:  "Hashes the password given as an argument, or the first line of stdin when no argument is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return eris.Wrap(err, "read password")
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return eris.New("password must not be empty")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
		if err != nil {
			return eris.Wrap(err, "hash password")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

func init() {
	hashPasswordCmd.Flags().IntVar(&hashCost, "cost", bcrypt.DefaultCost, "bcrypt cost")
}
